package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testSession(id string, created time.Time) *Session {
	return &Session{
		SessionID:    id,
		UserID:       "u-1",
		TenantID:     "acme",
		CreatedAt:    created,
		LastActivity: created,
		ExpiresAt:    created.Add(time.Hour),
		IsActive:     true,
	}
}

func TestStoreInsertGetUpdateDelete(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			if _, err := store.Insert(ctx, testSession("s1", now), 0, now); err != nil {
				t.Fatalf("insert: %v", err)
			}
			got, err := store.Get(ctx, "s1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.UserID != "u-1" || !got.IsActive {
				t.Fatalf("unexpected session %+v", got)
			}

			updated, err := store.Update(ctx, "s1", func(s *Session) (bool, error) {
				s.MFAVerified = true
				return true, nil
			})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if !updated.MFAVerified {
				t.Fatal("update result must reflect the change")
			}
			got, _ = store.Get(ctx, "s1")
			if !got.MFAVerified {
				t.Fatal("update not persisted")
			}

			if err := store.Delete(ctx, "s1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := store.Delete(ctx, "s1"); err != nil {
				t.Fatalf("second delete: %v", err)
			}
			if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			listed, err := store.ListByUser(ctx, "acme", "u-1")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(listed) != 0 {
				t.Fatalf("expected empty index, got %d", len(listed))
			}
		})
	}
}

func TestStoreUpdateMissingAndCallbackError(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			now := time.Now()

			if _, err := store.Update(ctx, "missing", func(*Session) (bool, error) { return true, nil }); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			if _, err := store.Insert(ctx, testSession("s1", now), 0, now); err != nil {
				t.Fatalf("insert: %v", err)
			}
			boom := errors.New("boom")
			if _, err := store.Update(ctx, "s1", func(*Session) (bool, error) { return false, boom }); !errors.Is(err, boom) {
				t.Fatalf("expected callback error, got %v", err)
			}
		})
	}
}

func TestStoreInsertEvictsOldestLive(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			for i, id := range []string{"a", "b", "c"} {
				now := base.Add(time.Duration(i) * time.Second)
				if _, err := store.Insert(ctx, testSession(id, now), 3, now); err != nil {
					t.Fatalf("insert %s: %v", id, err)
				}
			}

			now := base.Add(10 * time.Second)
			evicted, err := store.Insert(ctx, testSession("d", now), 3, now)
			if err != nil {
				t.Fatalf("insert d: %v", err)
			}
			if len(evicted) != 1 || evicted[0].SessionID != "a" {
				t.Fatalf("expected a evicted, got %+v", evicted)
			}
			a, _ := store.Get(ctx, "a")
			if a.IsActive || a.InvalidationReason() != ReasonLimitExceeded {
				t.Fatalf("evicted session not terminal: %+v", a)
			}
			if got := liveCount(t, store, "acme", "u-1", now); got != 3 {
				t.Fatalf("expected 3 live sessions, got %d", got)
			}
		})
	}
}

func TestStoreExpiredSessionsDoNotCountTowardsLimit(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			old := testSession("old", base)
			old.ExpiresAt = base.Add(time.Minute)
			if _, err := store.Insert(ctx, old, 1, base); err != nil {
				t.Fatalf("insert: %v", err)
			}

			later := base.Add(time.Hour)
			evicted, err := store.Insert(ctx, testSession("new", later), 1, later)
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
			if len(evicted) != 0 {
				t.Fatalf("expired session must not be evicted, got %+v", evicted)
			}
		})
	}
}

func TestStoreScan(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			now := time.Now()
			for _, id := range []string{"x", "y", "z"} {
				if _, err := store.Insert(ctx, testSession(id, now), 0, now); err != nil {
					t.Fatalf("insert: %v", err)
				}
			}

			seen := map[string]bool{}
			if err := store.Scan(ctx, func(s *Session) error {
				seen[s.SessionID] = true
				return nil
			}); err != nil {
				t.Fatalf("scan: %v", err)
			}
			if len(seen) != 3 {
				t.Fatalf("expected 3 sessions, saw %v", seen)
			}

			stop := errors.New("stop")
			if err := store.Scan(ctx, func(*Session) error { return stop }); !errors.Is(err, stop) {
				t.Fatalf("expected scan to stop with callback error, got %v", err)
			}
		})
	}
}

func TestRedisStoreCorruptRecord(t *testing.T) {
	store, rdb := newRedisStoreTest(t)
	ctx := context.Background()
	if err := rdb.Set(ctx, store.key("bad"), "not-json", 0).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Get(ctx, "bad"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestRedisStoreDropsStaleIndexEntries(t *testing.T) {
	store, rdb := newRedisStoreTest(t)
	ctx := context.Background()
	now := time.Now()

	if err := rdb.SAdd(ctx, store.userKey("acme", "u-1"), "ghost").Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Insert(ctx, testSession("s1", now), 5, now); err != nil {
		t.Fatalf("insert: %v", err)
	}
	members, err := rdb.SMembers(ctx, store.userKey("acme", "u-1")).Result()
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 1 || members[0] != "s1" {
		t.Fatalf("expected only s1 in index, got %v", members)
	}
}

func TestRedisStoreSkipsUndecodableIndexEntries(t *testing.T) {
	store, rdb := newRedisStoreTest(t)
	ctx := context.Background()
	now := time.Now()

	if err := rdb.Set(ctx, store.key("bad"), "not-json", 0).Err(); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if err := rdb.SAdd(ctx, store.userKey("acme", "u-1"), "bad").Err(); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	if _, err := store.Insert(ctx, testSession("s1", now), 5, now); err != nil {
		t.Fatalf("insert with corrupt sibling: %v", err)
	}
	members, err := rdb.SMembers(ctx, store.userKey("acme", "u-1")).Result()
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 1 || members[0] != "s1" {
		t.Fatalf("expected only s1 in index, got %v", members)
	}
	if _, err := store.Insert(ctx, testSession("s2", now), 5, now); err != nil {
		t.Fatalf("second insert: %v", err)
	}

	var seen []string
	if err := store.Scan(ctx, func(s *Session) error {
		seen = append(seen, s.SessionID)
		return nil
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected the two live records, saw %v", seen)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	// Swap in a client pointing at a closed port.
	store.redis = newClosedClient(t)
	if err := store.Ping(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Get(context.Background(), "s1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
