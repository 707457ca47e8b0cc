// Package worker runs the archive generation loop: lease a job, build the
// ZIP, publish it, and settle the job against the store's lease protocol.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"darkroom/internal/config"
	"darkroom/internal/logging"
	"darkroom/internal/notifications"
	"darkroom/internal/services/images"
	"darkroom/internal/services/objstore"
	"darkroom/internal/store"
	"darkroom/internal/zipper"
)

// Worker leases and processes archive jobs until its context ends.
type Worker struct {
	id       string
	store    *store.Store
	source   images.Source
	blobs    objstore.Store
	zipper   *zipper.Zipper
	notifier notifications.Service
	cfg      *config.Config
	logger   *slog.Logger
}

// New builds a worker with the given identity.
func New(id string, st *store.Store, source images.Source, blobs objstore.Store, notifier notifications.Service, cfg *config.Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Worker{
		id:       id,
		store:    st,
		source:   source,
		blobs:    blobs,
		zipper:   zipper.New(cfg.Paths.StagingDir, blobs),
		notifier: notifier,
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "worker").With(logging.String(logging.FieldWorkerID, id)),
	}
}

// ID returns the worker's lease identity.
func (w *Worker) ID() string {
	return w.id
}

// Run polls for jobs until the context is canceled. A failing job never takes
// the loop down; store errors pause the loop briefly instead of spinning.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	for {
		worked, err := w.RunOnce(ctx)
		if ctx.Err() != nil {
			w.logger.Info("worker stopped")
			return
		}
		switch {
		case err != nil:
			w.logger.Error("worker iteration failed", logging.Error(err))
			sleepCtx(ctx, w.cfg.Queue.ErrorRetryPauseDuration())
		case !worked:
			sleepCtx(ctx, w.cfg.Queue.PollIntervalDuration())
		}
	}
}

// RunOnce leases at most one job and processes it. The bool reports whether
// any work was found.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.LeaseJob(ctx, w.id, w.cfg.Queue.LeaseTimeoutDuration())
	if err != nil {
		return false, fmt.Errorf("lease job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	logger := w.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldGalleryID, job.GalleryID),
		logging.Int64(logging.FieldArchiveID, job.ArchiveID))
	logger.Info("job leased", logging.Int64("attempt", job.Attempts+1))

	if err := w.processJob(ctx, job, logger); err != nil {
		w.settleFailure(ctx, job, err, logger)
		return true, nil
	}
	return true, nil
}

// processJob does the actual archive build. Panics become errors so one bad
// job cannot kill the worker.
func (w *Worker) processJob(ctx context.Context, job *store.Job, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", logging.Any("panic", r), logging.String("stack", string(debug.Stack())))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	if err := w.store.MarkArchiveProcessing(ctx, job.ArchiveID); err != nil {
		return fmt.Errorf("mark archive processing: %w", err)
	}
	archive, err := w.store.GetArchive(ctx, job.ArchiveID)
	if err != nil {
		return fmt.Errorf("load archive: %w", err)
	}
	if archive == nil {
		return fmt.Errorf("archive %d missing", job.ArchiveID)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.Queue.JobTimeoutDuration())
	defer cancel()

	imgs, err := w.source.ListImages(jobCtx, job.GalleryID)
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}

	result, err := w.zipper.Build(jobCtx, job.ID, imgs)
	if err != nil {
		return fmt.Errorf("build archive: %w", err)
	}

	location, err := w.blobs.PublishArchive(jobCtx, result.StagingPath, job.GalleryID, archive.Version)
	if err != nil {
		return fmt.Errorf("publish archive: %w", err)
	}

	expiry := w.cfg.Archive.ExpiryFrom(time.Now())
	if err := w.store.MarkArchiveCompleted(ctx, archive.ID, location, result.SizeBytes, result.Checksum, result.ImageCount, expiry); err != nil {
		return fmt.Errorf("mark archive completed: %w", err)
	}

	ok, err := w.store.CompleteJob(ctx, job.ID, w.id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if !ok {
		// The lease was reclaimed mid-build and someone else owns the job
		// now. The work is wasted but the archive row is correct either way.
		logger.Warn("lease lost before completion, result discarded")
		return nil
	}

	logger.Info("archive completed",
		logging.Int64("version", archive.Version),
		logging.Int64("size_bytes", result.SizeBytes),
		logging.Int64("images", result.ImageCount))

	w.notifyReady(ctx, archive.ID, logger)
	return nil
}

// settleFailure records a failed attempt and, on terminal failure, finalizes
// the archive and fires the failure notification.
func (w *Worker) settleFailure(ctx context.Context, job *store.Job, jobErr error, logger *slog.Logger) {
	outcome, err := w.store.FailJob(ctx, job.ID, w.id, jobErr.Error(),
		w.cfg.Queue.RetryBackoffDuration(), w.cfg.Queue.RetryBackoffCapDuration())
	if err != nil {
		logger.Error("record job failure", logging.Error(err))
		return
	}
	if !outcome.Applied {
		logger.Warn("lease lost before failure could be recorded", logging.Error(jobErr))
		return
	}
	if !outcome.Terminal {
		logger.Warn("job failed, will retry",
			logging.Error(jobErr),
			logging.Int64("attempt", outcome.Attempts),
			logging.String("next_run", outcome.NextRun.UTC().Format(time.RFC3339)))
		return
	}

	logger.Error("job failed terminally", logging.Error(jobErr), logging.Int64("attempts", outcome.Attempts))
	if err := w.store.MarkArchiveFailed(ctx, job.ArchiveID, jobErr.Error()); err != nil {
		logger.Error("mark archive failed", logging.Error(err))
	}
	w.notifyFailed(ctx, job.ArchiveID, jobErr, logger)
}

func (w *Worker) notifyReady(ctx context.Context, archiveID int64, logger *slog.Logger) {
	claimed, err := w.store.ClaimNotification(ctx, archiveID)
	if err != nil {
		logger.Error("claim notification", logging.Error(err))
		return
	}
	if !claimed {
		return
	}
	archive, err := w.store.GetArchive(ctx, archiveID)
	if err != nil || archive == nil {
		logger.Error("load archive for notification", logging.Error(err))
		return
	}
	if err := w.notifier.NotifyArchiveReady(ctx, archive); err != nil {
		// The claim already burned: at-most-once means a failed send stays
		// unsent rather than risking duplicates.
		logger.Error("send ready notification", logging.Error(err))
		return
	}
	if err := w.store.MarkNotificationSent(ctx, archiveID, archive.NotifyRecipient); err != nil {
		logger.Error("record notification", logging.Error(err))
	}
}

func (w *Worker) notifyFailed(ctx context.Context, archiveID int64, jobErr error, logger *slog.Logger) {
	claimed, err := w.store.ClaimNotification(ctx, archiveID)
	if err != nil {
		logger.Error("claim notification", logging.Error(err))
		return
	}
	if !claimed {
		return
	}
	archive, err := w.store.GetArchive(ctx, archiveID)
	if err != nil || archive == nil {
		logger.Error("load archive for notification", logging.Error(err))
		return
	}
	if err := w.notifier.NotifyArchiveFailed(ctx, archive, jobErr.Error()); err != nil {
		logger.Error("send failure notification", logging.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
