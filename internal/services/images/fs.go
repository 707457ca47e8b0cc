package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"darkroom/internal/services"
)

// FSSource reads gallery image metadata from a directory tree laid out as
// <root>/<gallery_id>/<image files>. Ordering follows file name, which is how
// the surrounding product orders uploads on disk.
type FSSource struct {
	root string
}

// NewFSSource builds a filesystem-backed image metadata source.
func NewFSSource(root string) *FSSource {
	return &FSSource{root: root}
}

// ListImages implements Source.
func (s *FSSource) ListImages(ctx context.Context, galleryID string) ([]Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	galleryID = strings.TrimSpace(galleryID)
	if galleryID == "" || galleryID != filepath.Base(galleryID) {
		return nil, services.Wrap(services.ErrValidation, "images", "list", fmt.Sprintf("invalid gallery id %q", galleryID), nil)
	}

	dir := filepath.Join(s.root, galleryID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "images", "list", fmt.Sprintf("gallery %s", galleryID), err)
		}
		return nil, services.Wrap(services.ErrTransient, "images", "list", fmt.Sprintf("gallery %s", galleryID), err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	imgs := make([]Image, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "images", "stat", path, err)
		}
		imgs = append(imgs, Image{
			ID:          name,
			Checksum:    metadataChecksum(name, info.Size(), info.ModTime().UnixNano()),
			StoragePath: path,
			SizeBytes:   info.Size(),
		})
	}
	return imgs, nil
}

// metadataChecksum derives a content fingerprint from metadata alone so that
// listing stays cheap. Size or mtime moving means the file was rewritten.
func metadataChecksum(name string, size, mtimeNanos int64) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(mtimeNanos, 10)))
	return hex.EncodeToString(h.Sum(nil))
}
