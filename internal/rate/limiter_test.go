package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryLimiterFixedWindow(t *testing.T) {
	clock := &stepClock{now: time.Unix(1700000000, 0)}
	l := New(NewMemoryBackend(nil), "rl").WithClock(clock.Now)
	ctx := context.Background()

	const n = 5
	for i := 1; i <= n; i++ {
		res, err := l.Check(ctx, "t:u:/x", n, time.Minute)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d should be allowed", i)
		}
	}

	res, err := l.Check(ctx, "t:u:/x", n, time.Minute)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Allowed {
		t.Fatal("hit n+1 should be rejected")
	}
	if res.Count != n+1 || res.Limit != n || res.Key != "rl:t:u:/x" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := res.RetryAfter(clock.Now()); got != 60 {
		t.Fatalf("expected retry-after 60, got %d", got)
	}

	clock.Advance(time.Minute + time.Millisecond)
	for i := 1; i <= n; i++ {
		res, err := l.Check(ctx, "t:u:/x", n, time.Minute)
		if err != nil {
			t.Fatalf("check after reset %d: %v", i, err)
		}
		if !res.Allowed || res.Count != int64(i) {
			t.Fatalf("after reset hit %d: %+v", i, res)
		}
	}
}

func TestMemoryLimiterConcurrentBurst(t *testing.T) {
	l := New(NewMemoryBackend(nil), "")
	ctx := context.Background()

	const limit = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Check(ctx, "burst", limit, time.Minute)
			if err != nil {
				t.Errorf("check: %v", err)
				return
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Fatalf("expected exactly %d allowed, got %d", limit, allowed)
	}
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := New(NewRedisBackend(rdb), "rl")
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Check(ctx, "k", 3, 10*time.Second)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d should be allowed", i)
		}
	}
	res, err := l.Check(ctx, "k", 3, 10*time.Second)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Allowed || res.Count != 4 {
		t.Fatalf("expected rejection at count 4, got %+v", res)
	}

	mr.FastForward(11 * time.Second)

	res, err = l.Check(ctx, "k", 3, 10*time.Second)
	if err != nil {
		t.Fatalf("check after window: %v", err)
	}
	if !res.Allowed || res.Count != 1 {
		t.Fatalf("expected fresh window, got %+v", res)
	}
}

func TestRedisLimiterUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	_, err = New(NewRedisBackend(rdb), "").Check(context.Background(), "k", 1, time.Second)
	if err == nil {
		t.Fatal("expected error with redis down")
	}
}

func TestCheckRejectsInvalidPolicy(t *testing.T) {
	l := New(NewMemoryBackend(nil), "")
	if _, err := l.Check(context.Background(), "k", 0, time.Second); err != ErrInvalidPolicy {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestMemoryBackendCleanup(t *testing.T) {
	b := NewMemoryBackend(nil)
	now := time.Unix(100, 0)
	_, _, _ = b.Increment(context.Background(), "a", time.Second, now)
	_, _, _ = b.Increment(context.Background(), "b", time.Hour, now)

	if removed := b.Cleanup(now.Add(2 * time.Second)); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 window left, got %d", b.Len())
	}
}
