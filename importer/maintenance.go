package importer

import (
	"context"

	"go.uber.org/zap"

	"catalog-sync/catalog"
)

// MaintenanceAPI is the slice of the catalog client the purge routine needs.
type MaintenanceAPI interface {
	ListProducts(ctx context.Context, page, limit int) (*catalog.ProductPage, error)
	DeleteProduct(ctx context.Context, id string) error
}

const purgePageSize = 200

// PurgeProducts deletes every product in the catalog one at a time with the
// same isolation as an import run: one failed delete never stops the rest.
// Cancellation is observed between deletes. Destructive; callers must confirm
// before invoking.
func PurgeProducts(ctx context.Context, client MaintenanceAPI, progress func(done, total int)) (deleted, failed int, err error) {
	// Snapshot all ids first so deletions don't shift pagination under us.
	var ids []string
	for page := 1; ; page++ {
		result, err := client.ListProducts(ctx, page, purgePageSize)
		if err != nil {
			return 0, 0, err
		}
		for _, p := range result.Products {
			ids = append(ids, p.ID)
		}
		if page >= result.TotalPages || len(result.Products) == 0 {
			break
		}
	}

	for i, id := range ids {
		if ctx.Err() != nil {
			zap.L().Warn("purge cancelled", zap.Int("deleted", deleted), zap.Int("failed", failed))
			return deleted, failed, nil
		}
		if err := client.DeleteProduct(ctx, id); err != nil {
			failed++
			zap.L().Error("failed to delete product", zap.String("id", id), zap.Error(err))
		} else {
			deleted++
		}
		if progress != nil {
			progress(i+1, len(ids))
		}
	}
	return deleted, failed, nil
}
