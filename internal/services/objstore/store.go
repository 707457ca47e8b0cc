package objstore

import (
	"context"
	"io"
)

// Store is the blob backend the archive workers talk to. Implementations map
// storage paths and archive locations onto whatever actually holds the bytes.
type Store interface {
	// ReadImage opens the image blob at the given storage path. The caller
	// closes the reader.
	ReadImage(ctx context.Context, storagePath string) (io.ReadCloser, error)

	// PublishArchive moves a fully written staging file into durable archive
	// storage and returns the location recorded for downloads. The staging
	// file is consumed on success.
	PublishArchive(ctx context.Context, stagingPath, galleryID string, version int64) (string, error)

	// RemoveArchive deletes a previously published archive blob. Removing a
	// location that no longer exists is not an error.
	RemoveArchive(ctx context.Context, location string) error
}
