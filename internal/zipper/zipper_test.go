package zipper_test

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"darkroom/internal/services"
	"darkroom/internal/services/images"
	"darkroom/internal/services/objstore"
	"darkroom/internal/zipper"
)

func seedImages(t *testing.T, dir string, contents map[string]string) []images.Image {
	t.Helper()
	var imgs []images.Image
	for name, content := range contents {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		imgs = append(imgs, images.Image{
			ID:          name,
			Checksum:    name + "-sum",
			StoragePath: path,
			SizeBytes:   int64(len(content)),
		})
	}
	return imgs
}

func TestBuildProducesReadableZip(t *testing.T) {
	srcDir := t.TempDir()
	imgs := seedImages(t, srcDir, map[string]string{
		"001.jpg": "first image bytes",
		"002.jpg": "second image bytes",
	})

	z := zipper.New(t.TempDir(), objstore.NewFSStore(t.TempDir()))
	result, err := z.Build(context.Background(), 7, imgs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.ImageCount != 2 {
		t.Fatalf("expected 2 entries, got %d", result.ImageCount)
	}

	info, err := os.Stat(result.StagingPath)
	if err != nil {
		t.Fatalf("stat staging file: %v", err)
	}
	if info.Size() != result.SizeBytes {
		t.Fatalf("size mismatch: stat %d, result %d", info.Size(), result.SizeBytes)
	}

	data, err := os.ReadFile(result.StagingPath)
	if err != nil {
		t.Fatalf("read staging file: %v", err)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != result.Checksum {
		t.Fatal("checksum does not match file content")
	}

	zr, err := zip.OpenReader(result.StagingPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != len(imgs) {
		t.Fatalf("expected %d entries, got %d", len(imgs), len(zr.File))
	}
	for i, entry := range zr.File {
		if entry.Name != imgs[i].ID {
			t.Fatalf("entry %d: expected %s, got %s", i, imgs[i].ID, entry.Name)
		}
		rc, err := entry.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", entry.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", entry.Name, err)
		}
		want, err := os.ReadFile(imgs[i].StoragePath)
		if err != nil {
			t.Fatalf("read source %s: %v", imgs[i].StoragePath, err)
		}
		if string(content) != string(want) {
			t.Fatalf("entry %s content mismatch", entry.Name)
		}
	}
}

func TestBuildEmptyGallery(t *testing.T) {
	z := zipper.New(t.TempDir(), objstore.NewFSStore(t.TempDir()))
	result, err := z.Build(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.ImageCount != 0 {
		t.Fatalf("expected 0 entries, got %d", result.ImageCount)
	}
	zr, err := zip.OpenReader(result.StagingPath)
	if err != nil {
		t.Fatalf("empty zip should still be valid: %v", err)
	}
	zr.Close()
}

func TestBuildMissingImageCleansUp(t *testing.T) {
	stagingDir := t.TempDir()
	z := zipper.New(stagingDir, objstore.NewFSStore(t.TempDir()))

	imgs := []images.Image{{
		ID:          "missing.jpg",
		Checksum:    "x",
		StoragePath: filepath.Join(t.TempDir(), "missing.jpg"),
	}}
	_, err := z.Build(context.Background(), 2, imgs)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected partial staging file removed, found %d entries", len(entries))
	}
}

func TestBuildCanceledContext(t *testing.T) {
	srcDir := t.TempDir()
	imgs := seedImages(t, srcDir, map[string]string{"a.jpg": "bytes"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	z := zipper.New(t.TempDir(), objstore.NewFSStore(t.TempDir()))
	if _, err := z.Build(ctx, 3, imgs); !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker for canceled build, got %v", err)
	}
}
