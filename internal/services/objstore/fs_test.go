package objstore_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"darkroom/internal/services"
	"darkroom/internal/services/objstore"
)

func TestReadImageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.jpg")
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	store := objstore.NewFSStore(t.TempDir())
	rc, err := store.ReadImage(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestReadImageMissing(t *testing.T) {
	store := objstore.NewFSStore(t.TempDir())
	_, err := store.ReadImage(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestPublishArchiveMovesStagingFile(t *testing.T) {
	staging := filepath.Join(t.TempDir(), "job.zip")
	if err := os.WriteFile(staging, []byte("zip payload"), 0o644); err != nil {
		t.Fatalf("write staging: %v", err)
	}

	archives := t.TempDir()
	store := objstore.NewFSStore(archives)
	location, err := store.PublishArchive(context.Background(), staging, "g1", 3)
	if err != nil {
		t.Fatalf("PublishArchive: %v", err)
	}
	if want := filepath.Join(archives, "g1", "v3.zip"); location != want {
		t.Fatalf("location = %s, want %s", location, want)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		t.Fatalf("read published archive: %v", err)
	}
	if string(data) != "zip payload" {
		t.Fatalf("unexpected archive content %q", data)
	}
	if _, err := os.Stat(staging); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staging file should be consumed, stat err = %v", err)
	}
}

func TestRemoveArchiveIdempotent(t *testing.T) {
	archives := t.TempDir()
	store := objstore.NewFSStore(archives)
	location := filepath.Join(archives, "g1", "v1.zip")
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(location, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := store.RemoveArchive(context.Background(), location); err != nil {
		t.Fatalf("RemoveArchive: %v", err)
	}
	if err := store.RemoveArchive(context.Background(), location); err != nil {
		t.Fatalf("second RemoveArchive should be a no-op: %v", err)
	}
}
