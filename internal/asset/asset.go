// Package asset persists student photos outside the record store.
//
// A record only carries a reference (ImagePath) to its photo. Before a
// record is inserted or updated with a new photo, the directory service
// asks a Store to copy the picked file into durable storage and records
// the stable reference the Store hands back.
package asset

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/aanand-mishra/student-directory/internal/config"
)

// Store is the asset store contract.
type Store interface {
	// Persist copies the file at tempPath into durable storage and
	// returns a stable reference to the copy. Every call produces a new,
	// unique reference, so two writes never share an asset.
	Persist(ctx context.Context, tempPath string) (string, error)

	// Exists reports whether the referenced asset is still present.
	Exists(ctx context.Context, ref string) (bool, error)

	// Remove deletes the referenced asset. Removing a missing asset is
	// not an error.
	Remove(ctx context.Context, ref string) error
}

// newKey names a persisted copy: a random UUID plus the source file's
// extension, lower-cased ("IMG_0042.JPG" → "<uuid>.jpg").
func newKey(tempPath string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(tempPath))
}

// New builds the Store selected by cfg.Backend. The s3 backend creates
// its bucket on first use.
func New(ctx context.Context, cfg config.Assets) (Store, error) {
	switch cfg.Backend {
	case config.AssetsS3:
		s, err := NewS3(cfg.S3)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("asset.New: %w", err)
		}
		return s, nil
	default:
		return NewFS(cfg.Dir)
	}
}
