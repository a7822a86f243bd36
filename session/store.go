package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no session exists for an ID.
	ErrNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps Redis transport and command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrConflict is returned when an optimistic transaction kept losing races.
	ErrConflict = errors.New("session update conflict")
	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("session record corrupt")
)

// UpdateFunc mutates a session inside an atomic read-modify-write. It reports
// whether the session changed; unchanged sessions are not written back.
type UpdateFunc func(s *Session) (changed bool, err error)

// Store persists sessions. Implementations serialize Update calls per
// session and Insert calls per (tenant, user) pair.
type Store interface {
	// Get returns a copy of the session or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*Session, error)
	// Insert stores sess. When limit > 0 it first deactivates the oldest live
	// sessions of the same (tenant, user) until fewer than limit remain, all
	// in one atomic step, and returns the evicted sessions.
	Insert(ctx context.Context, sess *Session, limit int, now time.Time) ([]*Session, error)
	// Update applies fn atomically and returns the resulting session.
	Update(ctx context.Context, sessionID string, fn UpdateFunc) (*Session, error)
	// ListByUser returns every stored session of a (tenant, user) pair.
	ListByUser(ctx context.Context, tenantID, userID string) ([]*Session, error)
	// Scan calls fn for every stored session. Iteration stops at the first error.
	Scan(ctx context.Context, fn func(*Session) error) error
	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error
	// Ping checks backend availability.
	Ping(ctx context.Context) error
}

func encode(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

func decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if s.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrCorrupt)
	}
	return &s, nil
}

func userIndexKey(tenantID, userID string) string {
	return normalizeTenantID(tenantID) + ":" + userID
}

func normalizeTenantID(tenantID string) string {
	if tenantID == "" {
		return "0"
	}
	return tenantID
}

// evictionCandidates returns the live sessions that must be deactivated so a
// new one fits under limit, oldest first.
func evictionCandidates(existing []*Session, limit int, now time.Time) []*Session {
	if limit <= 0 {
		return nil
	}
	live := make([]*Session, 0, len(existing))
	for _, s := range existing {
		if s.Live(now) {
			live = append(live, s)
		}
	}
	if len(live) < limit {
		return nil
	}
	sortByCreated(live)
	return live[:len(live)-limit+1]
}
