package rate

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryBackend is a mutex-guarded, single-process [Backend].
type MemoryBackend struct {
	mu      sync.Mutex
	windows map[string]*window
	logger  *slog.Logger
}

// NewMemoryBackend creates an empty in-memory backend. A nil logger
// discards cleanup logs.
func NewMemoryBackend(logger *slog.Logger) *MemoryBackend {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MemoryBackend{
		windows: make(map[string]*window),
		logger:  logger,
	}
}

// Increment implements [Backend].
func (m *MemoryBackend) Increment(_ context.Context, key string, d time.Duration, now time.Time) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(d)}
		m.windows[key] = w
		return w.count, w.resetAt, nil
	}

	w.count++
	return w.count, w.resetAt, nil
}

// Len returns the number of tracked windows.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Cleanup drops windows that ended before now and returns how many.
func (m *MemoryBackend) Cleanup(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, w := range m.windows {
		if now.After(w.resetAt) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done. It blocks.
func (m *MemoryBackend) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.InfoContext(ctx, "rate limit cleanup started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			m.logger.InfoContext(context.Background(), "rate limit cleanup stopped")
			return ctx.Err()
		case now := <-ticker.C:
			if removed := m.Cleanup(now); removed > 0 {
				m.logger.DebugContext(ctx, "rate limit windows removed", slog.Int("removed", removed))
			}
		}
	}
}
