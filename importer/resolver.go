package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"catalog-sync/models"
)

// CategoryAPI is the slice of the catalog client the resolver needs.
type CategoryAPI interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, name string) (models.Category, error)
}

// ResolutionError means a category name could be neither found nor created.
type ResolutionError struct {
	Name string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve category %q: %v", e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolver maps category names to remote ids, creating missing categories as
// a side effect. Matching ignores case. The cache makes resolution idempotent
// within one run; it is not shared across runs. Not safe for concurrent use —
// imports run on a single control goroutine.
type Resolver struct {
	client CategoryAPI
	byName map[string]string
	loaded bool
}

func NewResolver(client CategoryAPI) *Resolver {
	return &Resolver{client: client, byName: make(map[string]string)}
}

// Resolve returns the category id for name. On a cache miss after the remote
// listing it creates the category. If creation fails (e.g. a concurrent
// importer won the race), it re-reads the remote listing once before giving
// up with a ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	key := strings.ToLower(trimmed)
	if key == "" {
		return "", &ResolutionError{Name: name, Err: errors.New("empty category name")}
	}

	if !r.loaded {
		if err := r.refresh(ctx); err != nil {
			return "", &ResolutionError{Name: trimmed, Err: err}
		}
	}
	if id, ok := r.byName[key]; ok {
		return id, nil
	}

	cat, err := r.client.CreateCategory(ctx, trimmed)
	if err != nil {
		if rerr := r.refresh(ctx); rerr == nil {
			if id, ok := r.byName[key]; ok {
				return id, nil
			}
		}
		return "", &ResolutionError{Name: trimmed, Err: err}
	}

	zap.L().Info("category created", zap.String("name", trimmed), zap.String("id", cat.ID))
	r.byName[key] = cat.ID
	return cat.ID, nil
}

func (r *Resolver) refresh(ctx context.Context) error {
	cats, err := r.client.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range cats {
		r.byName[strings.ToLower(strings.TrimSpace(c.Name))] = c.ID
	}
	r.loaded = true
	return nil
}
