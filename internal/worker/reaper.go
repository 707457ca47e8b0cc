package worker

import (
	"context"
	"log/slog"
	"time"

	"darkroom/internal/config"
	"darkroom/internal/logging"
	"darkroom/internal/store"
)

// Reaper periodically returns jobs with expired leases to the pending queue
// so work orphaned by a crashed worker gets picked up again.
type Reaper struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewReaper builds a Reaper.
func NewReaper(st *store.Store, cfg *config.Config, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reaper{
		store:  st,
		cfg:    cfg,
		logger: logging.WithComponent(logger, "reaper"),
	}
}

// Run sweeps on a ticker until the context is canceled.
func (r *Reaper) Run(ctx context.Context) {
	interval := r.cfg.Queue.ReapIntervalDuration()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", logging.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one reclaim pass.
func (r *Reaper) Sweep(ctx context.Context) {
	count, err := r.store.ReclaimExpiredLeases(ctx, r.cfg.Queue.LeaseTimeoutDuration())
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("reclaim expired leases", logging.Error(err))
		}
		return
	}
	if count > 0 {
		r.logger.Warn("reclaimed expired leases", logging.Int64("jobs", count))
	}
}
