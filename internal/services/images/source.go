package images

import "context"

// Image describes one gallery image. Checksum changes whenever the image
// content changes; it is metadata the surrounding product already tracks,
// so listing never has to read image bytes.
type Image struct {
	ID          string
	Checksum    string
	StoragePath string
	SizeBytes   int64
}

// Source lists the current image set of a gallery in gallery order.
// Implementations return services.ErrNotFound (wrapped) when the gallery
// does not exist. An existing gallery with zero images returns an empty
// slice and no error.
type Source interface {
	ListImages(ctx context.Context, galleryID string) ([]Image, error)
}
