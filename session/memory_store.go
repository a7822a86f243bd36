package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded, single-process [Store]. It suits tests and
// single-instance deployments; records are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[string]map[string]struct{}
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Insert(_ context.Context, sess *Session, limit int, now time.Time) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := userIndexKey(sess.TenantID, sess.UserID)
	existing := make([]*Session, 0, len(m.byUser[idx]))
	for id := range m.byUser[idx] {
		if s, ok := m.sessions[id]; ok {
			existing = append(existing, s)
		}
	}

	candidates := evictionCandidates(existing, limit, now)
	evicted := make([]*Session, 0, len(candidates))
	for _, s := range candidates {
		if s.deactivate(ReasonLimitExceeded, now) {
			evicted = append(evicted, s.Clone())
		}
	}

	m.sessions[sess.SessionID] = sess.Clone()
	if m.byUser[idx] == nil {
		m.byUser[idx] = make(map[string]struct{})
	}
	m.byUser[idx][sess.SessionID] = struct{}{}

	return evicted, nil
}

func (m *MemoryStore) Update(_ context.Context, sessionID string, fn UpdateFunc) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	next := current.Clone()
	changed, err := fn(next)
	if err != nil {
		return nil, err
	}
	if changed {
		m.sessions[sessionID] = next.Clone()
	}
	return next, nil
}

func (m *MemoryStore) ListByUser(_ context.Context, tenantID, userID string) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.byUser[userIndexKey(tenantID, userID)]
	out := make([]*Session, 0, len(ids))
	for id := range ids {
		if s, ok := m.sessions[id]; ok {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) Scan(ctx context.Context, fn func(*Session) error) error {
	m.mu.Lock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		snapshot = append(snapshot, s.Clone())
	}
	m.mu.Unlock()

	for _, s := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(m.sessions, sessionID)

	idx := userIndexKey(s.TenantID, s.UserID)
	delete(m.byUser[idx], sessionID)
	if len(m.byUser[idx]) == 0 {
		delete(m.byUser, idx)
	}
	return nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored sessions, active or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
