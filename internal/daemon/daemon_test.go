package daemon_test

import (
	"context"
	"os"
	"testing"
	"time"

	"darkroom/internal/api"
	"darkroom/internal/daemon"
	"darkroom/internal/logging"
	"darkroom/internal/store"
	"darkroom/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second Start should fail while running")
	}
	if !d.Status(ctx).Running {
		t.Fatal("status should report running")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("status should report stopped")
	}

	// The lock is free again, so a restart succeeds.
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	d.Stop()
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	first, err := daemon.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = first.Close()
	})

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer first.Stop()

	cfg2 := *cfg
	cfg2.Paths.APIBind = "127.0.0.1:0"
	st2, err := store.OpenPath(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open second store: %v", err)
	}
	second, err := daemon.New(&cfg2, st2, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second daemon on the same lock file should refuse to start")
	}
}

func TestDaemonServesArchiveRequests(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	cfg.Queue.PollInterval = 1
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	testsupport.SeedGallery(t, cfg.Library.ImagesDir, "wedding-2026", "001.jpg", "002.jpg", "003.jpg")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	client := api.NewClient(d.APIAddr())

	ticket, err := client.RequestArchive(ctx, api.RequestArchiveRequest{GalleryID: "wedding-2026"})
	if err != nil {
		t.Fatalf("RequestArchive: %v", err)
	}
	if ticket.Hit || ticket.Job == nil {
		t.Fatalf("expected a job ticket, got %+v", ticket)
	}

	deadline := time.Now().Add(10 * time.Second)
	var archive *api.ArchiveView
	for time.Now().Before(deadline) {
		archive, err = client.GetArchive(ctx, ticket.Archive.ID)
		if err != nil {
			t.Fatalf("GetArchive: %v", err)
		}
		if archive.Status == string(store.StatusCompleted) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if archive == nil || archive.Status != string(store.StatusCompleted) {
		t.Fatalf("archive never completed: %+v", archive)
	}
	if archive.ImageCount != 3 || archive.SizeBytes == 0 {
		t.Fatalf("unexpected archive result: %+v", archive)
	}
	if _, err := os.Stat(archive.StorageLocation); err != nil {
		t.Fatalf("published archive missing: %v", err)
	}

	// The same request again is now a cache hit served without a job.
	hit, err := client.RequestArchive(ctx, api.RequestArchiveRequest{GalleryID: "wedding-2026"})
	if err != nil {
		t.Fatalf("RequestArchive: %v", err)
	}
	if !hit.Hit || hit.Archive.ID != archive.ID {
		t.Fatalf("expected cache hit on archive %d, got %+v", archive.ID, hit)
	}

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.Queue.Completed != 1 {
		t.Fatalf("unexpected daemon status: %+v", status)
	}
}
