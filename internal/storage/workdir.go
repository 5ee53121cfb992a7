package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Workdir materializes a user's photos on local disk for the duration of one
// review pass. Duplicate detection needs every image locally before any pair
// can be compared.
type Workdir struct {
	dir   string
	paths map[string]string
}

// NewWorkdir creates a transient directory for one user's review.
func NewWorkdir(userID string) (*Workdir, error) {
	dir, err := os.MkdirTemp("", "review-"+userID+"-")
	if err != nil {
		return nil, err
	}
	return &Workdir{dir: dir, paths: make(map[string]string)}, nil
}

// Materialize downloads one blob into the workdir and returns its local path.
// Re-materializing the same key returns the existing file.
func (w *Workdir) Materialize(ctx context.Context, store BlobStore, key string) (string, error) {
	if local, ok := w.paths[key]; ok {
		return local, nil
	}

	data, err := store.Get(ctx, key)
	if err != nil {
		return "", err
	}

	local := filepath.Join(w.dir, flatten(key))
	if err := os.WriteFile(local, data, 0o600); err != nil {
		return "", err
	}
	w.paths[key] = local
	return local, nil
}

// Cleanup removes the workdir. Failures are logged only; a leaked temp dir
// never fails a review.
func (w *Workdir) Cleanup() {
	if err := os.RemoveAll(w.dir); err != nil {
		slog.Warn("failed to remove review workdir", "dir", w.dir, "error", err)
	}
}

func flatten(key string) string {
	return strings.ReplaceAll(key, string(os.PathSeparator), "_")
}
