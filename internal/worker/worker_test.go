package worker_test

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"darkroom/internal/config"
	"darkroom/internal/notifications"
	"darkroom/internal/scheduler"
	"darkroom/internal/services/images"
	"darkroom/internal/services/objstore"
	"darkroom/internal/store"
	"darkroom/internal/testsupport"
	"darkroom/internal/worker"
)

type fixture struct {
	cfg    *config.Config
	store  *store.Store
	source images.Source
	blobs  objstore.Store
	sched  *scheduler.Scheduler
	worker *worker.Worker
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	source := images.NewFSSource(cfg.Library.ImagesDir)
	blobs := objstore.NewFSStore(cfg.Library.ArchivesDir)
	return &fixture{
		cfg:    cfg,
		store:  st,
		source: source,
		blobs:  blobs,
		sched:  scheduler.New(st, source, cfg, nil),
		worker: worker.New("worker-test", st, source, blobs, notifications.NewService(cfg), cfg, nil),
	}
}

func (f *fixture) seedGallery(t *testing.T, galleryID string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(f.cfg.Library.ImagesDir, galleryID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir gallery: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write image %s: %v", name, err)
		}
	}
}

func TestWorkerBuildsArchiveEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.seedGallery(t, "g1", map[string]string{
		"001.jpg": "first",
		"002.jpg": "second",
		"003.jpg": "third",
	})

	ctx := context.Background()
	request, err := f.sched.RequestArchive(ctx, "g1", scheduler.RequestOptions{})
	if err != nil {
		t.Fatalf("RequestArchive: %v", err)
	}
	if request.Hit {
		t.Fatal("expected a miss")
	}

	worked, err := f.worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !worked {
		t.Fatal("expected the worker to find the job")
	}

	archive, err := f.store.GetArchive(ctx, request.Archive.ID)
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if archive.Status != store.StatusCompleted {
		t.Fatalf("expected completed archive, got %s (%s)", archive.Status, archive.ErrorMessage)
	}
	if archive.Version != 1 || archive.ImageCount != 3 {
		t.Fatalf("unexpected archive: %#v", archive)
	}

	zr, err := zip.OpenReader(archive.StorageLocation)
	if err != nil {
		t.Fatalf("open published zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 3 {
		t.Fatalf("expected 3 zip entries, got %d", len(zr.File))
	}
	wantOrder := []string{"001.jpg", "002.jpg", "003.jpg"}
	for i, entry := range zr.File {
		if entry.Name != wantOrder[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, wantOrder[i], entry.Name)
		}
	}

	job, err := f.store.GetJob(ctx, request.Job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != store.StatusCompleted {
		t.Fatalf("expected completed job, got %s", job.Status)
	}

	// Unchanged gallery is now a cache hit.
	hit, err := f.sched.RequestArchive(ctx, "g1", scheduler.RequestOptions{})
	if err != nil {
		t.Fatalf("RequestArchive after completion: %v", err)
	}
	if !hit.Hit || hit.Archive.ID != archive.ID {
		t.Fatalf("expected hit on archive %d, got %#v", archive.ID, hit)
	}
}

func TestWorkerBuildsNewVersionAfterUpload(t *testing.T) {
	f := newFixture(t)
	f.seedGallery(t, "g1", map[string]string{
		"001.jpg": "first",
		"002.jpg": "second",
		"003.jpg": "third",
	})

	ctx := context.Background()
	if _, err := f.sched.RequestArchive(ctx, "g1", scheduler.RequestOptions{}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}

	f.seedGallery(t, "g1", map[string]string{"004.jpg": "fourth"})
	second, err := f.sched.RequestArchive(ctx, "g1", scheduler.RequestOptions{})
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if second.Hit {
		t.Fatal("expected a miss after upload")
	}
	if second.Archive.Version != 2 {
		t.Fatalf("expected version 2, got %d", second.Archive.Version)
	}

	if _, err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	archive, err := f.store.GetArchive(ctx, second.Archive.ID)
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if archive.Status != store.StatusCompleted || archive.ImageCount != 4 {
		t.Fatalf("unexpected v2 archive: %#v", archive)
	}

	zr, err := zip.OpenReader(archive.StorageLocation)
	if err != nil {
		t.Fatalf("open v2 zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 4 {
		t.Fatalf("expected 4 entries in v2, got %d", len(zr.File))
	}
}

func TestWorkerNoWork(t *testing.T) {
	f := newFixture(t)
	worked, err := f.worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if worked {
		t.Fatal("expected no work on an empty queue")
	}
}

func TestWorkerRequeuesTransientFailure(t *testing.T) {
	f := newFixture(t)

	// A job whose gallery has no files on disk: listing succeeds through the
	// fake below but the blob reads fail.
	source := testsupport.NewFakeImageSource()
	source.SetGallery("g1", []images.Image{testsupport.Img("001.jpg", "aa")})
	sched := scheduler.New(f.store, source, f.cfg, nil)
	w := worker.New("worker-test", f.store, source, f.blobs, notifications.NewService(f.cfg), f.cfg, nil)

	ctx := context.Background()
	request, err := sched.RequestArchive(ctx, "g1", scheduler.RequestOptions{})
	if err != nil {
		t.Fatalf("RequestArchive: %v", err)
	}

	worked, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !worked {
		t.Fatal("expected the worker to pick up the job")
	}

	job, err := f.store.GetJob(ctx, request.Job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != store.StatusPending {
		t.Fatalf("expected requeued job, got %s", job.Status)
	}
	if job.Attempts != 1 {
		t.Fatalf("expected 1 attempt recorded, got %d", job.Attempts)
	}
	if job.LastError == "" {
		t.Fatal("expected last error recorded")
	}

	archive, err := f.store.GetArchive(ctx, request.Archive.ID)
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if archive.Status != store.StatusProcessing {
		t.Fatalf("archive should stay processing across retries, got %s", archive.Status)
	}
}

func TestWorkerTerminalFailureMarksArchive(t *testing.T) {
	f := newFixture(t, testsupport.WithMaxAttempts(1))

	source := testsupport.NewFakeImageSource()
	source.SetGallery("g1", []images.Image{testsupport.Img("001.jpg", "aa")})
	sched := scheduler.New(f.store, source, f.cfg, nil)
	w := worker.New("worker-test", f.store, source, f.blobs, notifications.NewService(f.cfg), f.cfg, nil)

	ctx := context.Background()
	request, err := sched.RequestArchive(ctx, "g1", scheduler.RequestOptions{})
	if err != nil {
		t.Fatalf("RequestArchive: %v", err)
	}

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	job, err := f.store.GetJob(ctx, request.Job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != store.StatusFailed {
		t.Fatalf("expected failed job, got %s", job.Status)
	}

	archive, err := f.store.GetArchive(ctx, request.Archive.ID)
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if archive.Status != store.StatusFailed {
		t.Fatalf("expected failed archive, got %s", archive.Status)
	}
	if archive.ErrorMessage == "" {
		t.Fatal("expected error message recorded on archive")
	}
	if !archive.NotifySent {
		t.Fatal("expected failure notification claimed")
	}
}

type panicSource struct{}

func (panicSource) ListImages(context.Context, string) ([]images.Image, error) {
	panic("boom")
}

func TestWorkerSurvivesPanic(t *testing.T) {
	f := newFixture(t)

	testsupport.Enqueue(t, f.store, "g1", "hash")
	w := worker.New("worker-test", f.store, panicSource{}, f.blobs, notifications.NewService(f.cfg), f.cfg, nil)

	ctx := context.Background()
	worked, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce must absorb the panic, got %v", err)
	}
	if !worked {
		t.Fatal("expected the job to be picked up")
	}

	jobs, err := f.store.ListJobs(ctx, store.StatusPending)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Attempts != 1 {
		t.Fatalf("expected requeued job with one attempt, got %#v", jobs)
	}
}

func TestWorkerSendsReadyNotificationOnce(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newFixture(t)
	f.cfg.Notifications.NtfyTopic = server.URL
	f.seedGallery(t, "g1", map[string]string{"001.jpg": "bytes"})

	sched := scheduler.New(f.store, f.source, f.cfg, nil)
	w := worker.New("worker-test", f.store, f.source, f.blobs, notifications.NewService(f.cfg), f.cfg, nil)

	ctx := context.Background()
	request, err := sched.RequestArchive(ctx, "g1", scheduler.RequestOptions{NotifyRecipient: "studio@example.com"})
	if err != nil {
		t.Fatalf("RequestArchive: %v", err)
	}
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if calls.Load() != 1 {
		t.Fatalf("expected exactly one notification, got %d", calls.Load())
	}
	archive, err := f.store.GetArchive(ctx, request.Archive.ID)
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if !archive.NotifySent || archive.NotifyRecipient != "studio@example.com" {
		t.Fatalf("unexpected notification state: %#v", archive)
	}
}

func TestReaperReclaimsAbandonedJob(t *testing.T) {
	f := newFixture(t)
	f.cfg.Queue.LeaseTimeout = 0 // every lease is instantly stale

	ctx := context.Background()
	testsupport.Enqueue(t, f.store, "g1", "hash")
	job, err := f.store.LeaseJob(ctx, "crashed-worker", time.Minute)
	if err != nil || job == nil {
		t.Fatalf("LeaseJob: job=%v err=%v", job, err)
	}

	reaper := worker.NewReaper(f.store, f.cfg, nil)
	time.Sleep(10 * time.Millisecond)
	reaper.Sweep(ctx)

	reclaimed, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if reclaimed.Status != store.StatusPending {
		t.Fatalf("expected reclaimed job pending, got %s", reclaimed.Status)
	}
	if reclaimed.Attempts != 0 {
		t.Fatalf("reclaim must not charge attempts, got %d", reclaimed.Attempts)
	}
}

func TestPoolProcessesQueue(t *testing.T) {
	f := newFixture(t, testsupport.WithWorkers(2))

	ctx := context.Background()
	for _, gallery := range []string{"g1", "g2", "g3"} {
		f.seedGallery(t, gallery, map[string]string{"001.jpg": gallery + "-bytes"})
		if _, err := f.sched.RequestArchive(ctx, gallery, scheduler.RequestOptions{}); err != nil {
			t.Fatalf("RequestArchive %s: %v", gallery, err)
		}
	}

	pool := worker.NewPool(f.store, f.source, f.blobs, notifications.NewService(f.cfg), f.cfg, nil)
	pool.Start(ctx)
	defer pool.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		health, err := f.store.Health(ctx)
		if err != nil {
			t.Fatalf("Health: %v", err)
		}
		if health.Completed == 3 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("pool did not finish the queue in time")
}
