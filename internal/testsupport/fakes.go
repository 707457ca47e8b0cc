package testsupport

import (
	"context"
	"fmt"
	"sync"

	"darkroom/internal/services"
	"darkroom/internal/services/images"
)

// FakeImageSource is an in-memory images.Source for tests. Galleries are
// mutated between requests to simulate uploads and edits.
type FakeImageSource struct {
	mu        sync.Mutex
	galleries map[string][]images.Image
}

// NewFakeImageSource returns an empty fake source.
func NewFakeImageSource() *FakeImageSource {
	return &FakeImageSource{galleries: make(map[string][]images.Image)}
}

// SetGallery replaces a gallery's image set.
func (f *FakeImageSource) SetGallery(galleryID string, imgs []images.Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]images.Image, len(imgs))
	copy(cp, imgs)
	f.galleries[galleryID] = cp
}

// AddImage appends one image to a gallery, creating it if needed.
func (f *FakeImageSource) AddImage(galleryID string, img images.Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.galleries[galleryID] = append(f.galleries[galleryID], img)
}

// ListImages implements images.Source.
func (f *FakeImageSource) ListImages(_ context.Context, galleryID string) ([]images.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	imgs, ok := f.galleries[galleryID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "images", "list",
			fmt.Sprintf("gallery %s", galleryID), nil)
	}
	cp := make([]images.Image, len(imgs))
	copy(cp, imgs)
	return cp, nil
}

// Img builds a deterministic test image.
func Img(id, checksum string) images.Image {
	return images.Image{
		ID:          id,
		Checksum:    checksum,
		StoragePath: "/fake/" + id,
		SizeBytes:   int64(len(id)),
	}
}
