package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"darkroom/internal/config"
	"darkroom/internal/logging"
	"darkroom/internal/notifications"
	"darkroom/internal/scheduler"
	"darkroom/internal/services/images"
	"darkroom/internal/services/objstore"
	"darkroom/internal/store"
	"darkroom/internal/worker"
)

// Daemon coordinates the archive pipeline services and enforces
// single-instance execution via a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	scheduler *scheduler.Scheduler
	blobs     objstore.Store
	notifier  notifications.Service
	pool      *worker.Pool
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workers      int
	DBPath       string
	LockFilePath string
	Queue        store.HealthSummary
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	source := images.NewFSSource(cfg.Library.ImagesDir)
	blobs := objstore.NewFSStore(cfg.Library.ArchivesDir)
	notifier := notifications.NewService(cfg)

	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		scheduler: scheduler.New(st, source, cfg, logger),
		blobs:     blobs,
		notifier:  notifier,
		pool:      worker.NewPool(st, source, blobs, notifier, cfg, logger),
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the worker pool and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another darkroom daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}
	d.pool.Start(d.ctx)

	d.running.Store(true)
	d.logger.Info("darkroom daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pool.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("darkroom daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr reports the bound API address, or "" before Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// RequestArchive asks the scheduler for an archive of the gallery.
func (d *Daemon) RequestArchive(ctx context.Context, galleryID string, opts scheduler.RequestOptions) (*scheduler.Result, error) {
	return d.scheduler.RequestArchive(ctx, galleryID, opts)
}

// ArchiveStatus returns one archive by id.
func (d *Daemon) ArchiveStatus(ctx context.Context, id int64) (*store.Archive, error) {
	return d.scheduler.ArchiveStatus(ctx, id)
}

// JobStatus returns one job by id.
func (d *Daemon) JobStatus(ctx context.Context, id int64) (*store.Job, error) {
	return d.scheduler.JobStatus(ctx, id)
}

// ListJobs returns jobs filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses ...store.Status) ([]*store.Job, error) {
	return d.store.ListJobs(ctx, statuses...)
}

// ListArchives returns archives, all of them or one gallery's.
func (d *Daemon) ListArchives(ctx context.Context, galleryID string) ([]*store.Archive, error) {
	return d.store.ListArchives(ctx, galleryID)
}

// ClearQueue removes all jobs and archive records.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ClearCompleted removes finished jobs, keeping their archive records.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes failed jobs and their archive records.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// RetryFailed resets failed jobs (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// ReclaimLeases forces one reclaim pass outside the reaper schedule.
func (d *Daemon) ReclaimLeases(ctx context.Context) (int64, error) {
	return d.store.ReclaimExpiredLeases(ctx, d.cfg.Queue.LeaseTimeoutDuration())
}

// PruneExpired drops expired archive records and deletes their blobs. Blob
// removal is best effort: the record is already gone, a leftover file only
// wastes disk until the next prune.
func (d *Daemon) PruneExpired(ctx context.Context) (int64, error) {
	locations, err := d.store.PruneExpiredArchives(ctx)
	if err != nil {
		return 0, err
	}
	for _, location := range locations {
		if err := d.blobs.RemoveArchive(ctx, location); err != nil {
			d.logger.Warn("remove pruned archive blob",
				logging.String("location", location), logging.Error(err))
		}
	}
	return int64(len(locations)), nil
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (store.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (store.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("queue health unavailable", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workers:      d.cfg.Queue.Workers,
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		Queue:        health,
	}
}
