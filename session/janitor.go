package session

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Janitor sweeps expired sessions and purges terminal ones on a timer,
// independent of request traffic.
type Janitor struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor creates a [Janitor] sweeping every interval (default one minute).
func NewJanitor(m *Manager, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Janitor{manager: m, interval: interval, logger: logger}
}

// Run sweeps until ctx is done. It blocks; start it in its own goroutine.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.InfoContext(ctx, "session janitor started", slog.Duration("interval", j.interval))
	for {
		select {
		case <-ctx.Done():
			j.logger.InfoContext(context.Background(), "session janitor stopped")
			return ctx.Err()
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one expiry pass and one retention pass.
func (j *Janitor) Sweep(ctx context.Context) {
	expired, err := j.manager.CleanupExpired(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "session cleanup failed", slog.Any("error", err))
	} else if expired > 0 {
		j.logger.InfoContext(ctx, "expired sessions deactivated", slog.Int("count", expired))
	}

	purged, err := j.manager.PurgeInactive(ctx, 0)
	if err != nil {
		j.logger.ErrorContext(ctx, "session purge failed", slog.Any("error", err))
	} else if purged > 0 {
		j.logger.InfoContext(ctx, "terminal sessions purged", slog.Int("count", purged))
	}
}
