package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/academyportal/internal/observability/metrics"
)

// Sweeper drops expired session records and reports what is left.
type Sweeper interface {
	Sweep() (removed, remaining int)
}

// SessionSweeper periodically purges expired in-memory session records so
// abandoned sessions do not accumulate between restarts.
type SessionSweeper struct {
	store    Sweeper
	logger   *slog.Logger
	interval time.Duration
}

// NewSessionSweeper creates a new sweeper
func NewSessionSweeper(store Sweeper, logger *slog.Logger, interval time.Duration) *SessionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &SessionSweeper{
		store:    store,
		logger:   logger,
		interval: interval,
	}
}

// Start runs the sweep loop until ctx is cancelled
func (w *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("session sweeper started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single sweep
func (w *SessionSweeper) RunOnce() {
	removed, remaining := w.store.Sweep()
	metrics.SetActiveSessions(remaining)
	if removed > 0 {
		w.logger.Info("expired sessions removed",
			slog.Int("removed", removed),
			slog.Int("active", remaining),
		)
	}
}
