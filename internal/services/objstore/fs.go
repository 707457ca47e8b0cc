package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"darkroom/internal/services"
)

// FSStore keeps archive blobs on the local filesystem under a single root
// directory. Image storage paths are treated as absolute paths produced by the
// image source.
type FSStore struct {
	archivesDir string
}

// NewFSStore builds a filesystem blob store rooted at archivesDir.
func NewFSStore(archivesDir string) *FSStore {
	return &FSStore{archivesDir: archivesDir}
}

// ReadImage implements Store.
func (s *FSStore) ReadImage(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(storagePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "objstore", "read image", storagePath, err)
		}
		return nil, services.Wrap(services.ErrTransient, "objstore", "read image", storagePath, err)
	}
	return f, nil
}

// PublishArchive implements Store. Archives land at
// <archivesDir>/<galleryID>/v<version>.zip via rename so a published location
// is never visible half-written.
func (s *FSStore) PublishArchive(ctx context.Context, stagingPath, galleryID string, version int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := filepath.Join(s.archivesDir, galleryID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "objstore", "publish archive", dir, err)
	}
	location := filepath.Join(dir, fmt.Sprintf("v%d.zip", version))
	if err := os.Rename(stagingPath, location); err != nil {
		// Staging and archive dirs may sit on different filesystems.
		if copyErr := copyFile(stagingPath, location); copyErr != nil {
			return "", services.Wrap(services.ErrTransient, "objstore", "publish archive", location, copyErr)
		}
		_ = os.Remove(stagingPath)
	}
	return location, nil
}

// RemoveArchive implements Store.
func (s *FSStore) RemoveArchive(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrTransient, "objstore", "remove archive", location, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
