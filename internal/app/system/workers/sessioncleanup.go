// internal/app/system/workers/sessioncleanup.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Pruner deletes rows whose expiry has passed. The session and verification
// stores satisfy it.
type Pruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweeper drops idle in-memory state, such as rate limiter buckets.
type Sweeper interface {
	Sweep() int
}

// SessionCleanup is a background worker that removes expired sessions and
// verification tokens, and sweeps idle limiter buckets.
type SessionCleanup struct {
	pruners  map[string]Pruner
	sweepers []Sweeper
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSessionCleanup creates a new cleanup worker.
//
// Parameters:
//   - pruners: named stores to prune, e.g. {"sessions": ..., "verifications": ...}
//   - logger: zap logger for logging
//   - interval: how often to run cleanup (e.g., 10 minutes)
//   - sweepers: optional in-memory state to sweep on the same tick
func NewSessionCleanup(pruners map[string]Pruner, logger *zap.Logger, interval time.Duration, sweepers ...Sweeper) *SessionCleanup {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionCleanup{
		pruners:  pruners,
		sweepers: sweepers,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background cleanup loop.
func (w *SessionCleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("session cleanup worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// more than once.
func (w *SessionCleanup) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("session cleanup worker stopped")
}

func (w *SessionCleanup) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(context.Background())
		}
	}
}

// RunOnce performs a single cleanup pass.
func (w *SessionCleanup) RunOnce(parent context.Context) {
	ctx, cancel := timeouts.WithTimeout(parent, timeouts.Long(), w.log, "session cleanup")
	defer cancel()

	for name, p := range w.pruners {
		count, err := p.DeleteExpired(ctx)
		if err != nil {
			w.log.Error("failed to delete expired rows", zap.String("table", name), zap.Error(err))
			continue
		}
		if count > 0 {
			w.log.Info("deleted expired rows", zap.String("table", name), zap.Int64("count", count))
		}
	}

	for _, s := range w.sweepers {
		s.Sweep()
	}
}
