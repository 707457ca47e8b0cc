package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"darkroom/internal/config"
	"darkroom/internal/logging"
	"darkroom/internal/notifications"
	"darkroom/internal/services/images"
	"darkroom/internal/services/objstore"
	"darkroom/internal/store"
)

// Pool runs the configured number of workers plus the lease reaper.
type Pool struct {
	workers []*Worker
	reaper  *Reaper
	logger  *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewPool builds a pool of cfg.Queue.Workers workers, each with its own
// lease identity.
func NewPool(st *store.Store, source images.Source, blobs objstore.Store, notifier notifications.Service, cfg *config.Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	count := cfg.Queue.Workers
	if count < 1 {
		count = 1
	}
	workers := make([]*Worker, 0, count)
	for i := 0; i < count; i++ {
		id := "worker-" + uuid.NewString()
		workers = append(workers, New(id, st, source, blobs, notifier, cfg, logger))
	}
	return &Pool{
		workers: workers,
		reaper:  NewReaper(st, cfg, logger),
		logger:  logging.WithComponent(logger, "pool"),
	}
}

// Start launches the workers and the reaper. It returns immediately.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Run(runCtx)
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.reaper.Run(runCtx)
	}()

	go func() {
		wg.Wait()
		close(p.done)
	}()

	p.logger.Info("worker pool started", logging.Int("workers", len(p.workers)))
}

// Stop cancels the pool and waits for every worker to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.started = false
	p.mu.Unlock()

	cancel()
	<-done
	p.logger.Info("worker pool stopped")
}
