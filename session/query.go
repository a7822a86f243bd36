package session

import (
	"context"
	"time"
)

const defaultListLimit = 50

// Query filters [Manager.ListUserSessions]. Zero fields do not filter.
type Query struct {
	UserID        string
	TenantID      string
	Active        *bool
	ExpiresBefore time.Time
	ExpiresAfter  time.Time
	Limit         int
	Offset        int
}

func (q Query) match(s *Session) bool {
	if q.UserID != "" && s.UserID != q.UserID {
		return false
	}
	if q.TenantID != "" && s.TenantID != q.TenantID {
		return false
	}
	if q.Active != nil && s.IsActive != *q.Active {
		return false
	}
	if !q.ExpiresBefore.IsZero() && !s.ExpiresAt.Before(q.ExpiresBefore) {
		return false
	}
	if !q.ExpiresAfter.IsZero() && !s.ExpiresAt.After(q.ExpiresAfter) {
		return false
	}
	return true
}

// ListUserSessions returns sessions matching q, most recently active first.
// With a UserID the user index is used; otherwise the whole store is scanned.
func (m *Manager) ListUserSessions(ctx context.Context, q Query) ([]*Session, error) {
	var candidates []*Session
	if q.UserID != "" {
		listed, err := m.store.ListByUser(ctx, q.TenantID, q.UserID)
		if err != nil {
			return nil, err
		}
		candidates = listed
	} else {
		err := m.store.Scan(ctx, func(s *Session) error {
			candidates = append(candidates, s)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	out := make([]*Session, 0, len(candidates))
	for _, s := range candidates {
		if q.match(s) {
			out = append(out, s)
		}
	}
	sortByActivityDesc(out)

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := max(q.Offset, 0)
	if offset >= len(out) {
		return []*Session{}, nil
	}
	end := min(offset+limit, len(out))
	return out[offset:end], nil
}

// Stats summarizes session activity within a tenant.
type Stats struct {
	ActiveSessions     int
	SessionsLast24h    int
	AverageDuration    time.Duration
	UniqueUsers        int
	SuspiciousActivity int
}

// Statistics computes [Stats] for tenantID. Sessions created in the last 24
// hours feed the total and the average duration (last activity minus
// creation); suspicious activity counts those with device mismatches.
func (m *Manager) Statistics(ctx context.Context, tenantID string) (Stats, error) {
	now := m.now.Now()
	since := now.Add(-24 * time.Hour)

	var (
		stats    Stats
		total    time.Duration
		activeBy = make(map[string]struct{})
	)
	err := m.store.Scan(ctx, func(s *Session) error {
		if s.TenantID != tenantID {
			return nil
		}
		if s.Live(now) {
			stats.ActiveSessions++
			activeBy[s.UserID] = struct{}{}
		}
		if s.CreatedAt.After(since) {
			stats.SessionsLast24h++
			total += s.LastActivity.Sub(s.CreatedAt)
			if s.DeviceMismatches() > 0 {
				stats.SuspiciousActivity++
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	stats.UniqueUsers = len(activeBy)
	if stats.SessionsLast24h > 0 {
		stats.AverageDuration = total / time.Duration(stats.SessionsLast24h)
	}
	return stats, nil
}
