package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FS keeps photos as plain files under one directory.
type FS struct {
	dir string
}

var _ Store = (*FS)(nil)

// NewFS creates dir if needed and returns a Store rooted there.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("asset.NewFS: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("asset.NewFS: create %s: %w", abs, err)
	}
	return &FS{dir: abs}, nil
}

// Persist copies tempPath into the store directory. The copy is written
// to a temporary name and renamed into place, so a reference returned by
// Persist always points at a complete file.
func (f *FS) Persist(ctx context.Context, tempPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("Persist: %w", err)
	}

	src, err := os.Open(tempPath)
	if err != nil {
		return "", fmt.Errorf("Persist: open source: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("Persist: stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("Persist: %s is not a regular file", tempPath)
	}

	tmp, err := os.CreateTemp(f.dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("Persist: create temp: %w", err)
	}
	// Until the rename succeeds the partial file is ours to clean up.
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		return "", fmt.Errorf("Persist: copy: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("Persist: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("Persist: close: %w", err)
	}

	dst := filepath.Join(f.dir, newKey(tempPath))
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("Persist: rename: %w", err)
	}
	committed = true

	return dst, nil
}

// Exists reports whether the file at ref is present.
func (f *FS) Exists(ctx context.Context, ref string) (bool, error) {
	_, err := os.Stat(ref)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("Exists: stat: %w", err)
	}
}

// Remove deletes the file at ref. Only files inside the store directory
// may be removed.
func (f *FS) Remove(ctx context.Context, ref string) error {
	if filepath.Dir(filepath.Clean(ref)) != f.dir {
		return fmt.Errorf("Remove: %s is outside %s", ref, f.dir)
	}
	if err := os.Remove(ref); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("Remove: %w", err)
	}
	return nil
}
