package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGate/internal/audit"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *captureSink) Emit(_ context.Context, e audit.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *captureSink) count(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func newRedisStoreTest(t *testing.T) (*RedisStore, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, "gs"), rdb
}

// storeFactories runs a test against every Store implementation.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"redis": func(t *testing.T) Store {
			s, _ := newRedisStoreTest(t)
			return s
		},
	}
}

func newManagerTest(t *testing.T, store Store, cfg Config) (*Manager, *testClock, *captureSink) {
	t.Helper()
	clock := newTestClock()
	sink := &captureSink{}
	return NewManager(store, cfg, WithClock(clock.Now), WithAuditSink(sink)), clock, sink
}

func liveCount(t *testing.T, store Store, tenantID, userID string, now time.Time) int {
	t.Helper()
	sessions, err := store.ListByUser(context.Background(), tenantID, userID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	n := 0
	for _, s := range sessions {
		if s.Live(now) {
			n++
		}
	}
	return n
}

func newClosedClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	addr := mr.Addr()
	mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}
