// Package zipper streams gallery images into a ZIP file in the staging
// directory, checksumming the output as it writes.
package zipper

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"darkroom/internal/services"
	"darkroom/internal/services/images"
	"darkroom/internal/services/objstore"
)

// Result describes a finished staging ZIP.
type Result struct {
	StagingPath string
	SizeBytes   int64
	Checksum    string
	ImageCount  int64
}

// Zipper builds archives in a staging directory from blobs in an object store.
type Zipper struct {
	stagingDir string
	blobs      objstore.Store
}

// New returns a Zipper writing into stagingDir.
func New(stagingDir string, blobs objstore.Store) *Zipper {
	return &Zipper{stagingDir: stagingDir, blobs: blobs}
}

// Build streams every image into job-<id>.zip under the staging directory.
// Entries keep gallery order and are stored uncompressed: the inputs are
// already-compressed image formats, so Deflate would burn CPU for nothing.
// The partial file is removed on any error.
func (z *Zipper) Build(ctx context.Context, jobID int64, imgs []images.Image) (*Result, error) {
	if err := os.MkdirAll(z.stagingDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "zipper", "build", "create staging dir", err)
	}

	stagingPath := filepath.Join(z.stagingDir, fmt.Sprintf("job-%d.zip", jobID))
	f, err := os.Create(stagingPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "zipper", "build", "create staging file", err)
	}

	counter := &countingWriter{w: f, digest: sha256.New()}
	zw := zip.NewWriter(counter)

	cleanup := func() {
		_ = zw.Close()
		_ = f.Close()
		_ = os.Remove(stagingPath)
	}

	for _, img := range imgs {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, services.Wrap(services.ErrTimeout, "zipper", "build", "canceled", err)
		}
		if err := z.addImage(ctx, zw, img); err != nil {
			cleanup()
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(stagingPath)
		return nil, services.Wrap(services.ErrTransient, "zipper", "build", "finalize zip", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(stagingPath)
		return nil, services.Wrap(services.ErrTransient, "zipper", "build", "close staging file", err)
	}

	return &Result{
		StagingPath: stagingPath,
		SizeBytes:   counter.n,
		Checksum:    hex.EncodeToString(counter.digest.Sum(nil)),
		ImageCount:  int64(len(imgs)),
	}, nil
}

func (z *Zipper) addImage(ctx context.Context, zw *zip.Writer, img images.Image) error {
	rc, err := z.blobs.ReadImage(ctx, img.StoragePath)
	if err != nil {
		return err
	}
	defer rc.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:   img.ID,
		Method: zip.Store,
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "zipper", "build", fmt.Sprintf("create entry %s", img.ID), err)
	}
	if _, err := io.Copy(entry, rc); err != nil {
		return services.Wrap(services.ErrTransient, "zipper", "build", fmt.Sprintf("write entry %s", img.ID), err)
	}
	return nil
}

// countingWriter tracks bytes written and feeds the running checksum.
type countingWriter struct {
	w      io.Writer
	digest hash.Hash
	n      int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.digest.Write(p[:n])
	return n, err
}
