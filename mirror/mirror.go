// Package mirror is the local durable cache of the last remotely-confirmed
// image order per product. The remote catalog stays the source of truth on a
// cold miss; entries are written only after a confirmed remote write.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"catalog-sync/models"
)

// Mirror stores whole image collections keyed by product id. Put replaces the
// entry atomically; there is no partial update.
type Mirror interface {
	Get(ctx context.Context, productID string) (models.MirrorEntry, bool, error)
	Put(ctx context.Context, productID string, images []models.ImageRef) error
	Delete(ctx context.Context, productID string) error
}

// FileMirror keeps every entry in a single JSON file and rewrites it
// atomically (temp file + rename) on each Put. Suited to the single active
// product context of the desktop tools.
type FileMirror struct {
	path string

	mu      sync.Mutex
	entries map[string]models.MirrorEntry
}

// OpenFile loads (or initializes) a file-backed mirror at path, creating the
// parent directory if needed.
func OpenFile(path string) (*FileMirror, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	m := &FileMirror{path: path, entries: make(map[string]models.MirrorEntry)}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &m.entries); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *FileMirror) Get(_ context.Context, productID string) (models.MirrorEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[productID]
	if !ok {
		return models.MirrorEntry{}, false, nil
	}
	entry.Images = cloneRefs(entry.Images)
	return entry, true, nil
}

func (m *FileMirror) Put(_ context.Context, productID string, images []models.ImageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[productID] = models.MirrorEntry{
		ProductID: productID,
		Images:    cloneRefs(images),
		UpdatedAt: time.Now().UTC(),
	}
	return m.flushLocked()
}

func (m *FileMirror) Delete(_ context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[productID]; !ok {
		return nil
	}
	delete(m.entries, productID)
	return m.flushLocked()
}

func (m *FileMirror) flushLocked() error {
	b, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

func cloneRefs(refs []models.ImageRef) []models.ImageRef {
	if refs == nil {
		return nil
	}
	out := make([]models.ImageRef, len(refs))
	copy(out, refs)
	return out
}
