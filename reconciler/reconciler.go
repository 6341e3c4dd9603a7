// Package reconciler equalizes local edits to a product's ordered image
// collection with the remote catalog record and the blob-storage service.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"catalog-sync/blob"
	"catalog-sync/catalog"
	"catalog-sync/mirror"
	"catalog-sync/models"
)

// CatalogAPI is the slice of the catalog client the reconciler needs.
type CatalogAPI interface {
	GetProduct(ctx context.Context, id string) (models.Product, error)
	AppendImages(ctx context.Context, productID string, images []catalog.ImagePlacement) ([]models.RemoteImage, error)
	ClearImages(ctx context.Context, productID string) error
	ReorderImages(ctx context.Context, productID string, orders []catalog.ImageOrder) error
}

// LoadError means the initial image load failed; the working set is empty.
type LoadError struct {
	ProductID string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load images for product %s: %v", e.ProductID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// UploadError means a blob upload failed. The commit was aborted before any
// remote catalog write; Path names the file that failed to send.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// RemoteWriteError means the catalog rejected an image write after all
// uploads succeeded. Orphaned uploaded blobs are accepted, not cleaned up;
// the caller should reload to resynchronize.
type RemoteWriteError struct {
	ProductID string
	Op        string
	Err       error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("%s images for product %s: %v", e.Op, e.ProductID, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// Reconciler owns one product's image collection at a time. Mutations are
// in-memory until Commit, which pushes the full state remotely and then, only
// on success, updates the mirror. Order values stay a dense zero-based
// permutation across every mutation.
type Reconciler struct {
	api      CatalogAPI
	blobs    blob.Store
	mirror   mirror.Mirror
	progress func(done, total int, path string)

	productID string
	working   []models.ImageRef
	baseline  map[string]bool
	loaded    bool
}

func New(api CatalogAPI, blobs blob.Store, m mirror.Mirror) *Reconciler {
	return &Reconciler{api: api, blobs: blobs, mirror: m}
}

// SetProgress installs a callback invoked after each blob upload during
// Commit.
func (r *Reconciler) SetProgress(fn func(done, total int, path string)) {
	r.progress = fn
}

// ProductID returns the current product context, empty before the first Load.
func (r *Reconciler) ProductID() string { return r.productID }

// Images returns a copy of the working set in display order.
func (r *Reconciler) Images() []models.ImageRef {
	out := make([]models.ImageRef, len(r.working))
	copy(out, r.working)
	return out
}

// Load switches the product context and populates the working set, from the
// mirror when it has the product and from the remote record otherwise. On
// failure the working set is left empty.
func (r *Reconciler) Load(ctx context.Context, productID string) error {
	r.productID = productID
	r.working = nil
	r.baseline = nil
	r.loaded = false

	entry, ok, err := r.mirror.Get(ctx, productID)
	if err != nil {
		zap.L().Warn("image mirror read failed",
			zap.String("product_id", productID),
			zap.Error(err),
		)
	} else if ok {
		r.working = entry.Images
		r.compact()
		r.rebuildBaseline()
		r.loaded = true
		return nil
	}

	product, err := r.api.GetProduct(ctx, productID)
	if err != nil {
		return &LoadError{ProductID: productID, Err: err}
	}

	images := append([]models.RemoteImage(nil), product.Images...)
	sort.SliceStable(images, func(i, j int) bool { return images[i].Order < images[j].Order })
	refs := make([]models.ImageRef, 0, len(images))
	for i, img := range images {
		refs = append(refs, models.ImageRef{
			ID:       img.ID,
			Location: img.URL,
			Order:    i,
			Origin:   models.OriginRemote,
		})
	}
	r.working = refs
	r.rebuildBaseline()
	r.loaded = true
	return nil
}

// AddLocalFiles appends local files at the end of the working order. Purely
// in-memory until Commit.
func (r *Reconciler) AddLocalFiles(paths []string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		r.working = append(r.working, models.ImageRef{
			Location: p,
			Order:    len(r.working),
			Origin:   models.OriginLocal,
		})
	}
}

// Remove drops the entry with the given location (URL or local path) and
// re-densifies the order. Returns false when no entry matches.
func (r *Reconciler) Remove(location string) bool {
	for i, ref := range r.working {
		if ref.Location == location {
			r.working = append(r.working[:i], r.working[i+1:]...)
			r.compact()
			return true
		}
	}
	return false
}

// Reorder moves the entry with the given location to newIndex, shifting the
// others.
func (r *Reconciler) Reorder(location string, newIndex int) error {
	if newIndex < 0 || newIndex >= len(r.working) {
		return fmt.Errorf("index %d out of range for %d images", newIndex, len(r.working))
	}
	from := -1
	for i, ref := range r.working {
		if ref.Location == location {
			from = i
			break
		}
	}
	if from < 0 {
		return fmt.Errorf("no image with location %q", location)
	}
	moved := r.working[from]
	r.working = append(r.working[:from], r.working[from+1:]...)
	r.working = append(r.working[:newIndex], append([]models.ImageRef{moved}, r.working[newIndex:]...)...)
	r.compact()
	return nil
}

// Commit pushes the working set remotely. Local entries are uploaded first,
// in order; one upload failure aborts the whole commit with the working set
// and the remote record untouched. A pure reorder of existing remote images
// uses the cheaper reorder call and preserves remote image identity;
// everything else replaces the remote set (clear, then append). The mirror is
// updated only after the remote write succeeds. On a remote-write failure the
// working set is not rolled back; callers reload to resynchronize.
func (r *Reconciler) Commit(ctx context.Context) error {
	if r.productID == "" {
		return errors.New("no product loaded")
	}

	localCount := 0
	for _, ref := range r.working {
		if ref.Origin == models.OriginLocal {
			localCount++
		}
	}

	if localCount == 0 && r.sameRemoteSet() {
		orders := make([]catalog.ImageOrder, len(r.working))
		for i, ref := range r.working {
			orders[i] = catalog.ImageOrder{ID: ref.ID, Order: i}
		}
		if err := r.api.ReorderImages(ctx, r.productID, orders); err != nil {
			return &RemoteWriteError{ProductID: r.productID, Op: "reorder", Err: err}
		}
		r.syncMirror(ctx)
		return nil
	}

	// External-write barrier: every upload must land before the catalog is
	// touched, so a failure leaves no partial remote state.
	uploaded := make(map[string]string, localCount)
	done := 0
	for _, ref := range r.working {
		if ref.Origin != models.OriginLocal {
			continue
		}
		if _, ok := uploaded[ref.Location]; ok {
			done++
			continue
		}
		url, err := r.blobs.Upload(ctx, ref.Location)
		if err != nil {
			return &UploadError{Path: ref.Location, Err: err}
		}
		uploaded[ref.Location] = url
		done++
		if r.progress != nil {
			r.progress(done, localCount, ref.Location)
		}
	}

	placements := make([]catalog.ImagePlacement, len(r.working))
	for i, ref := range r.working {
		location := ref.Location
		if ref.Origin == models.OriginLocal {
			location = uploaded[ref.Location]
		}
		placements[i] = catalog.ImagePlacement{URL: location, Order: i}
	}

	if err := r.api.ClearImages(ctx, r.productID); err != nil {
		return &RemoteWriteError{ProductID: r.productID, Op: "clear", Err: err}
	}
	remote, err := r.api.AppendImages(ctx, r.productID, placements)
	if err != nil {
		return &RemoteWriteError{ProductID: r.productID, Op: "append", Err: err}
	}

	// Adopt the confirmed state: everything is remote now. Remote ids are
	// taken from the response when the API returns them.
	next := make([]models.ImageRef, len(placements))
	for i, pl := range placements {
		next[i] = models.ImageRef{Location: pl.URL, Order: i, Origin: models.OriginRemote}
	}
	if len(remote) == len(next) {
		sorted := append([]models.RemoteImage(nil), remote...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
		for i := range next {
			next[i].ID = sorted[i].ID
		}
	}
	r.working = next
	r.rebuildBaseline()
	r.syncMirror(ctx)
	return nil
}

// ClearAll deletes the remote image set and mirrors the empty collection.
// Destructive; callers confirm before invoking.
func (r *Reconciler) ClearAll(ctx context.Context) error {
	if r.productID == "" {
		return errors.New("no product loaded")
	}
	if err := r.api.ClearImages(ctx, r.productID); err != nil {
		return &RemoteWriteError{ProductID: r.productID, Op: "clear", Err: err}
	}
	r.working = nil
	r.rebuildBaseline()
	r.syncMirror(ctx)
	return nil
}

// Attach loads the product, appends the given local files and commits. Used
// by the import pipeline for the optional images column.
func (r *Reconciler) Attach(ctx context.Context, productID string, paths []string) error {
	if err := r.Load(ctx, productID); err != nil {
		return err
	}
	r.AddLocalFiles(paths)
	return r.Commit(ctx)
}

func (r *Reconciler) compact() {
	for i := range r.working {
		r.working[i].Order = i
	}
}

func (r *Reconciler) rebuildBaseline() {
	r.baseline = make(map[string]bool, len(r.working))
	for _, ref := range r.working {
		if ref.Origin == models.OriginRemote && ref.ID != "" {
			r.baseline[ref.ID] = true
		}
	}
}

// sameRemoteSet reports whether the working set is exactly the remote images
// seen at the last sync, ids intact, so only their order can differ.
func (r *Reconciler) sameRemoteSet() bool {
	if !r.loaded || len(r.working) == 0 || len(r.working) != len(r.baseline) {
		return false
	}
	for _, ref := range r.working {
		if ref.Origin != models.OriginRemote || ref.ID == "" || !r.baseline[ref.ID] {
			return false
		}
	}
	return true
}

// syncMirror records the confirmed state. The mirror is a cache: a write
// failure is logged, not surfaced, since the remote commit already landed.
func (r *Reconciler) syncMirror(ctx context.Context) {
	if err := r.mirror.Put(ctx, r.productID, r.working); err != nil {
		zap.L().Warn("image mirror update failed",
			zap.String("product_id", r.productID),
			zap.Error(err),
		)
	}
}
