package rate

import (
	"context"
	"math"
	"time"
)

// Backend stores fixed-window counters. Increment must be atomic per key: it
// starts a new window when none exists or the previous one elapsed, and
// otherwise increments the existing count.
type Backend interface {
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (count int64, resetAt time.Time, err error)
}

// Result describes one rate limit decision.
type Result struct {
	Allowed bool
	Key     string
	Count   int64
	Limit   int
	ResetAt time.Time
}

// Remaining returns how many more hits the current window accepts.
func (r Result) Remaining() int {
	left := int64(r.Limit) - r.Count
	if left < 0 {
		return 0
	}
	return int(left)
}

// RetryAfter returns whole seconds until the window resets, at least 1.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter enforces fixed-window limits on arbitrary keys.
type Limiter struct {
	backend Backend
	prefix  string
	now     func() time.Time
}

// New creates a [Limiter] over backend. Keys are namespaced with prefix when
// it is non-empty.
func New(backend Backend, prefix string) *Limiter {
	return &Limiter{
		backend: backend,
		prefix:  prefix,
		now:     time.Now,
	}
}

// WithClock overrides the limiter's time source and returns the limiter.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Check records one hit for key and reports whether it fits in the window.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if limit <= 0 || window <= 0 {
		return Result{}, ErrInvalidPolicy
	}
	if l.prefix != "" {
		key = l.prefix + ":" + key
	}

	count, resetAt, err := l.backend.Increment(ctx, key, window, l.now())
	if err != nil {
		return Result{}, err
	}

	return Result{
		Allowed: count <= int64(limit),
		Key:     key,
		Count:   count,
		Limit:   limit,
		ResetAt: resetAt,
	}, nil
}

// CheckPolicy is Check with the limit and window taken from p.
func (l *Limiter) CheckPolicy(ctx context.Context, key string, p Policy) (Result, error) {
	return l.Check(ctx, key, p.Requests, p.Window)
}
