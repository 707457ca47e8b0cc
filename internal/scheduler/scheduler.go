// Package scheduler decides whether an archive request is a cache hit or
// needs a generation job, and answers status polls for archives and jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"darkroom/internal/config"
	"darkroom/internal/contenthash"
	"darkroom/internal/logging"
	"darkroom/internal/services"
	"darkroom/internal/services/images"
	"darkroom/internal/store"
)

// RequestOptions tune a single archive request.
type RequestOptions struct {
	Priority        int64
	NotifyRecipient string
}

// Result is the outcome of RequestArchive: either a cache hit carrying the
// completed archive, or a ticket for the job that will produce it.
type Result struct {
	Hit     bool
	Archive *store.Archive
	Job     *store.Job
	Created bool
}

// Scheduler coordinates the archive cache and the job queue.
type Scheduler struct {
	store  *store.Store
	source images.Source
	cfg    *config.Config
	logger *slog.Logger
}

// New builds a Scheduler.
func New(st *store.Store, source images.Source, cfg *config.Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		store:  st,
		source: source,
		cfg:    cfg,
		logger: logging.WithComponent(logger, "scheduler"),
	}
}

// RequestArchive serves one download request. The gallery's current image set
// is fingerprinted; a completed archive with the same fingerprint is returned
// as a hit, otherwise a job is enqueued (or the in-flight one returned).
// A gallery with zero images is a caller error: there is nothing to archive.
func (s *Scheduler) RequestArchive(ctx context.Context, galleryID string, opts RequestOptions) (*Result, error) {
	imgs, err := s.source.ListImages(ctx, galleryID)
	if err != nil {
		return nil, err
	}
	if len(imgs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "scheduler", "request archive",
			fmt.Sprintf("gallery %s has no images", galleryID), nil)
	}

	hash := contenthash.Compute(imgs)

	hit, err := s.store.FindCurrentArchive(ctx, galleryID, hash)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scheduler", "request archive", "cache lookup", err)
	}
	if hit != nil {
		s.logger.Info("archive cache hit",
			logging.String(logging.FieldGalleryID, galleryID),
			logging.Int64(logging.FieldArchiveID, hit.ID),
			logging.Int64("version", hit.Version))
		return &Result{Hit: true, Archive: hit}, nil
	}

	priority := opts.Priority
	if priority == 0 {
		priority = int64(s.cfg.Queue.DefaultPriority)
	}

	ticket, err := s.store.EnqueueArchiveJob(ctx, galleryID, hash, store.EnqueueOptions{
		Priority:        priority,
		MaxAttempts:     int64(s.cfg.Queue.MaxAttempts),
		NotifyRecipient: opts.NotifyRecipient,
		ImageCount:      int64(len(imgs)),
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scheduler", "request archive", "enqueue", err)
	}

	if ticket.Created {
		s.logger.Info("archive job enqueued",
			logging.String(logging.FieldGalleryID, galleryID),
			logging.Int64(logging.FieldArchiveID, ticket.Archive.ID),
			logging.Int64(logging.FieldJobID, ticket.Job.ID),
			logging.Int64("version", ticket.Archive.Version),
			logging.Int("images", len(imgs)))
	} else {
		s.logger.Debug("archive request coalesced onto in-flight job",
			logging.String(logging.FieldGalleryID, galleryID),
			logging.Int64(logging.FieldJobID, ticket.Job.ID))
	}

	return &Result{Archive: ticket.Archive, Job: ticket.Job, Created: ticket.Created}, nil
}

// ArchiveStatus returns an archive for polling, or a not-found error.
func (s *Scheduler) ArchiveStatus(ctx context.Context, archiveID int64) (*store.Archive, error) {
	archive, err := s.store.GetArchive(ctx, archiveID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scheduler", "archive status", "", err)
	}
	if archive == nil {
		return nil, services.Wrap(services.ErrNotFound, "scheduler", "archive status",
			fmt.Sprintf("archive %d", archiveID), nil)
	}
	return archive, nil
}

// JobStatus returns a job for polling, or a not-found error.
func (s *Scheduler) JobStatus(ctx context.Context, jobID int64) (*store.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scheduler", "job status", "", err)
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "scheduler", "job status",
			fmt.Sprintf("job %d", jobID), nil)
	}
	return job, nil
}
