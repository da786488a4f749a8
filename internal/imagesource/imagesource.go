// Package imagesource acquires a photo for the draft being edited.
//
// Both acquisition paths may end with "no selection" (the user backed
// out, or nothing arrived in time). That is reported as ok == false with
// a nil error, never as a failure.
package imagesource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source is the image acquisition capability.
type Source interface {
	AcquireFromGallery(ctx context.Context) (path string, ok bool, err error)
	AcquireFromCamera(ctx context.Context) (path string, ok bool, err error)
}

// imageExts are the file types accepted from either path.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".heic": true,
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// Local is a Source backed by the local filesystem.
//
// The gallery is a file the user already picked (GalleryPath). The camera
// is a capture directory: whatever drives the camera drops each shot into
// CaptureDir, and the first new image file to appear is the acquisition.
// Shots should be renamed into the directory once complete so that a
// half-written file is never picked up.
type Local struct {
	GalleryPath string
	CaptureDir  string
	Timeout     time.Duration
}

var _ Source = (*Local)(nil)

// AcquireFromGallery returns GalleryPath if one was picked.
func (l *Local) AcquireFromGallery(ctx context.Context) (string, bool, error) {
	if l.GalleryPath == "" {
		return "", false, nil
	}
	info, err := os.Stat(l.GalleryPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, fmt.Errorf("gallery: %s does not exist", l.GalleryPath)
		}
		return "", false, fmt.Errorf("gallery: stat: %w", err)
	}
	if info.IsDir() || !IsImage(l.GalleryPath) {
		return "", false, fmt.Errorf("gallery: %s is not an image file", l.GalleryPath)
	}
	return l.GalleryPath, true, nil
}

// AcquireFromCamera waits for a new image in CaptureDir. Cancellation of
// ctx or running past Timeout is a cancelled acquisition.
func (l *Local) AcquireFromCamera(ctx context.Context) (string, bool, error) {
	if l.CaptureDir == "" {
		return "", false, errors.New("camera: no capture directory configured")
	}
	if err := os.MkdirAll(l.CaptureDir, 0o755); err != nil {
		return "", false, fmt.Errorf("camera: create capture dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", false, fmt.Errorf("camera: new watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.CaptureDir); err != nil {
		return "", false, fmt.Errorf("camera: watch %s: %w", l.CaptureDir, err)
	}

	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	for {
		select {
		case <-ctx.Done():
			return "", false, nil

		case ev, open := <-watcher.Events:
			if !open {
				return "", false, nil
			}
			if !ev.Has(fsnotify.Create) || !IsImage(ev.Name) {
				continue
			}
			if info, err := os.Stat(ev.Name); err != nil || !info.Mode().IsRegular() {
				continue
			}
			return ev.Name, true, nil

		case err, open := <-watcher.Errors:
			if !open {
				return "", false, nil
			}
			return "", false, fmt.Errorf("camera: watch: %w", err)
		}
	}
}
