// Package retention removes conversation sessions that have been idle past
// the configured retention window.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/duhoc-advisor/internal/shared"
	"github.com/ashureev/duhoc-advisor/internal/store"
)

// DefaultInterval is how often the worker sweeps.
const DefaultInterval = 5 * time.Minute

// CleanupCallback is called after a sweep that deleted sessions.
type CleanupCallback func(deleted int64)

// Worker periodically deletes idle sessions.
type Worker struct {
	repo      store.Repository
	maxIdle   time.Duration
	interval  time.Duration
	onCleanup CleanupCallback
}

// NewWorker returns a worker deleting sessions idle for longer than maxIdle.
func NewWorker(repo store.Repository, maxIdle, interval time.Duration, onCleanup CleanupCallback) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{repo: repo, maxIdle: maxIdle, interval: interval, onCleanup: onCleanup}
}

// Run sweeps until ctx is cancelled. A non-positive maxIdle disables sweeping.
func (w *Worker) Run(ctx context.Context) error {
	if w.maxIdle <= 0 {
		slog.Info("Retention worker disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	slog.Info("Retention worker started", "interval", w.interval, "max_idle", w.maxIdle)

	for {
		select {
		case <-ticker.C:
			w.Sweep(ctx)
		case <-ctx.Done():
			slog.Info("Retention worker shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Sweep runs one cleanup pass and returns the number of deleted sessions.
func (w *Worker) Sweep(ctx context.Context) int64 {
	var deleted int64
	err := shared.WithRetry(ctx, shared.DefaultRetry, "cleanup_idle_sessions", func() error {
		n, err := w.repo.CleanupIdleSessions(ctx, w.maxIdle)
		deleted = n
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Retention worker: context canceled during cleanup", "error", err)
			return 0
		}
		slog.Error("Retention worker failed to cleanup idle sessions", "error", err)
		return 0
	}

	if deleted > 0 {
		slog.Info("Retention worker cleaned up idle sessions", "count", deleted)
		if w.onCleanup != nil {
			w.onCleanup(deleted)
		}
	}
	return deleted
}
