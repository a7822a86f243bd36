package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/goGate/internal"
	"github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/google/uuid"
)

// Validation outcomes reported in [Result.Reason].
const (
	ReasonNotFound       = "Session not found"
	ReasonInactive       = "Session is inactive"
	ReasonSessionExpired = "Session expired"
	ReasonDeviceMismatch = "Device fingerprint mismatch"
)

// Audit event types emitted by the manager.
const (
	EventSessionCreated     = "session_created"
	EventSessionEvicted     = "session_evicted"
	EventSessionExpired     = "session_expired"
	EventSessionInvalidated = "session_invalidated"
	EventDeviceMismatch     = "device_mismatch"
	EventSessionsTerminated = "sessions_terminated"
	EventSessionMFAVerified = "session_mfa_verified"
)

// ErrInvalidParams is returned by Create for missing identity fields.
var ErrInvalidParams = errors.New("invalid session parameters")

// MismatchEscalation turns repeated fingerprint mismatches into an
// invalidation. Threshold 0 disables it.
type MismatchEscalation struct {
	Threshold int
	Window    time.Duration
}

// Config controls session lifetime and concurrency limits.
type Config struct {
	Timeout               time.Duration
	MaxConcurrentSessions int
	SlidingExpiration     bool
	Retention             time.Duration
	MismatchEscalation    MismatchEscalation
}

// DefaultConfig returns a 30 minute timeout, 5 concurrent sessions and a
// 24 hour retention of terminal sessions.
func DefaultConfig() Config {
	return Config{
		Timeout:               30 * time.Minute,
		MaxConcurrentSessions: 5,
		Retention:             24 * time.Hour,
	}
}

// CreateParams describes a session to create after primary authentication.
type CreateParams struct {
	UserID            string
	TenantID          string
	IP                string
	UserAgent         string
	DeviceFingerprint string
	MFAVerified       bool
	Metadata          map[string]string
}

// RequestInfo is the part of the current request a validation looks at.
type RequestInfo struct {
	IP          string
	UserAgent   string
	Fingerprint string
	Method      string
	Path        string
}

// Result is the outcome of [Manager.Validate].
type Result struct {
	Valid   bool
	Session *Session
	Reason  string
}

// Manager owns the session lifecycle on top of a [Store].
type Manager struct {
	store      Store
	cfg        Config
	sink       audit.Sink
	logger     *slog.Logger
	now        internal.Clock
	mismatches *rate.Limiter
}

// Option configures a [Manager].
type Option func(*Manager)

// WithAuditSink sets where lifecycle events go.
func WithAuditSink(sink audit.Sink) Option {
	return func(m *Manager) {
		if sink != nil {
			m.sink = sink
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithMismatchLimiter sets the counter used for mismatch escalation. Without
// it an in-memory counter is used when escalation is enabled.
func WithMismatchLimiter(l *rate.Limiter) Option {
	return func(m *Manager) {
		m.mismatches = l
	}
}

// NewManager creates a [Manager]. Zero config fields take their defaults.
func NewManager(store Store, cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrentSessions == 0 {
		cfg.MaxConcurrentSessions = def.MaxConcurrentSessions
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}

	m := &Manager{
		store:  store,
		cfg:    cfg,
		sink:   audit.NoOpSink{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.MismatchEscalation.Threshold > 0 && m.mismatches == nil {
		m.mismatches = rate.New(rate.NewMemoryBackend(m.logger), "dm")
	}
	if m.mismatches != nil && m.now != nil {
		m.mismatches.WithClock(m.now)
	}
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Fingerprint derives the device fingerprint of a request from its stable headers.
func Fingerprint(h http.Header) string {
	return internal.Fingerprint(h)
}

// Create stores a new session. When the user already holds the maximum
// number of live sessions in the tenant, the oldest is evicted first.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*Session, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidParams)
	}

	now := m.now.Now()
	id, err := internal.NewSessionID(now)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		SessionID:         id,
		UserID:            p.UserID,
		TenantID:          p.TenantID,
		IPAddress:         p.IP,
		UserAgent:         p.UserAgent,
		DeviceFingerprint: p.DeviceFingerprint,
		CreatedAt:         now,
		LastActivity:      now,
		ExpiresAt:         now.Add(m.cfg.Timeout),
		MFAVerified:       p.MFAVerified,
		IsActive:          true,
	}
	if len(p.Metadata) > 0 {
		sess.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			sess.Metadata[k] = v
		}
	}

	evicted, err := m.store.Insert(ctx, sess, m.cfg.MaxConcurrentSessions, now)
	if err != nil {
		return nil, err
	}

	for _, e := range evicted {
		m.emit(ctx, e, EventSessionEvicted, audit.SeverityLow, true, "oldest session evicted by concurrency limit", map[string]string{
			"reason":         ReasonLimitExceeded,
			"new_session_id": sess.SessionID,
		})
	}
	m.emit(ctx, sess, EventSessionCreated, audit.SeverityLow, true, "session created", map[string]string{
		"mfa_verified": strconv.FormatBool(sess.MFAVerified),
	})

	return sess.Clone(), nil
}

// Validate checks a session against the current request. A store failure
// is the only error; every other outcome is reported in the [Result].
func (m *Manager) Validate(ctx context.Context, sessionID string, req RequestInfo) (Result, error) {
	now := m.now.Now()

	var (
		reason      string
		expiredNow  bool
		mismatchNow bool
	)
	sess, err := m.store.Update(ctx, sessionID, func(s *Session) (bool, error) {
		switch {
		case !s.IsActive:
			reason = ReasonInactive
			return false, nil
		case s.Expired(now):
			reason = ReasonSessionExpired
			expiredNow = s.deactivate(ReasonExpired, now)
			return expiredNow, nil
		case fingerprintMismatch(s.DeviceFingerprint, req.Fingerprint):
			reason = ReasonDeviceMismatch
			mismatchNow = true
			s.setMeta(MetaDeviceMismatches, strconv.Itoa(s.DeviceMismatches()+1))
			return true, nil
		}

		s.LastActivity = now
		if m.cfg.SlidingExpiration {
			s.ExpiresAt = now.Add(m.cfg.Timeout)
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{Reason: ReasonNotFound}, nil
		}
		return Result{}, err
	}

	switch {
	case expiredNow:
		m.emit(ctx, sess, EventSessionExpired, audit.SeverityLow, true, "session expired on validation", map[string]string{
			"reason": ReasonExpired,
		})
	case mismatchNow:
		m.emit(ctx, sess, EventDeviceMismatch, audit.SeverityMedium, false, "device fingerprint mismatch", map[string]string{
			"request_ip":         req.IP,
			"request_user_agent": req.UserAgent,
			"session_ip":         sess.IPAddress,
			"mismatch_count":     strconv.Itoa(sess.DeviceMismatches()),
		})
		if err := m.escalateMismatch(ctx, sess); err != nil {
			return Result{}, err
		}
	}

	if reason != "" {
		return Result{Session: sess, Reason: reason}, nil
	}
	return Result{Valid: true, Session: sess}, nil
}

func fingerprintMismatch(stored, presented string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1
}

func (m *Manager) escalateMismatch(ctx context.Context, sess *Session) error {
	esc := m.cfg.MismatchEscalation
	if esc.Threshold <= 0 || m.mismatches == nil {
		return nil
	}
	window := esc.Window
	if window <= 0 {
		window = 15 * time.Minute
	}
	res, err := m.mismatches.Check(ctx, sess.SessionID, esc.Threshold, window)
	if err != nil {
		return err
	}
	if res.Count < int64(esc.Threshold) {
		return nil
	}
	m.logger.WarnContext(ctx, "device mismatch threshold reached",
		slog.String("session_id", sess.SessionID),
		slog.Int64("count", res.Count))
	return m.Invalidate(ctx, sess.SessionID, ReasonDeviceMismatchLimit)
}

// ExpireIfDue marks an active session past its expiry inactive with reason
// expired. It reports whether it did; live and missing sessions are left
// alone.
func (m *Manager) ExpireIfDue(ctx context.Context, sessionID string) (bool, error) {
	now := m.now.Now()
	expired := false
	sess, err := m.store.Update(ctx, sessionID, func(s *Session) (bool, error) {
		if !s.IsActive || !s.Expired(now) {
			return false, nil
		}
		expired = s.deactivate(ReasonExpired, now)
		return expired, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if expired {
		m.emit(ctx, sess, EventSessionExpired, audit.SeverityLow, true, "session expired", map[string]string{
			"reason": ReasonExpired,
		})
	}
	return expired, nil
}

// Refresh slides the expiry of a live session forward by the timeout. It
// returns false for missing, inactive or expired sessions.
func (m *Manager) Refresh(ctx context.Context, sessionID string) (bool, error) {
	now := m.now.Now()
	refreshed := false
	_, err := m.store.Update(ctx, sessionID, func(s *Session) (bool, error) {
		if !s.Live(now) {
			return false, nil
		}
		s.ExpiresAt = now.Add(m.cfg.Timeout)
		s.LastActivity = now
		refreshed = true
		return true, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return refreshed, nil
}

// Invalidate ends a session and records reason. Repeated calls leave the
// first reason in place and emit nothing.
func (m *Manager) Invalidate(ctx context.Context, sessionID, reason string) error {
	if reason == "" {
		reason = ReasonLogout
	}
	now := m.now.Now()
	changed := false
	sess, err := m.store.Update(ctx, sessionID, func(s *Session) (bool, error) {
		changed = s.deactivate(reason, now)
		return changed, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if changed {
		m.emit(ctx, sess, EventSessionInvalidated, audit.SeverityLow, true, "session invalidated", map[string]string{
			"reason": reason,
		})
	}
	return nil
}

// MarkMFAVerified records a completed step-up on a live session.
func (m *Manager) MarkMFAVerified(ctx context.Context, sessionID string) (bool, error) {
	now := m.now.Now()
	marked := false
	sess, err := m.store.Update(ctx, sessionID, func(s *Session) (bool, error) {
		if !s.Live(now) || s.MFAVerified {
			return false, nil
		}
		s.MFAVerified = true
		marked = true
		return true, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if marked {
		m.emit(ctx, sess, EventSessionMFAVerified, audit.SeverityLow, true, "session mfa verified", nil)
	}
	return marked, nil
}

// CleanupExpired marks every active session past its expiry inactive and
// returns how many it changed.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	now := m.now.Now()

	var due []string
	err := m.store.Scan(ctx, func(s *Session) error {
		if s.IsActive && s.Expired(now) {
			due = append(due, s.SessionID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range due {
		changed := false
		sess, err := m.store.Update(ctx, id, func(s *Session) (bool, error) {
			if s.Expired(now) {
				changed = s.deactivate(ReasonExpired, now)
			}
			return changed, nil
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return count, err
		}
		if changed {
			count++
			m.emit(ctx, sess, EventSessionExpired, audit.SeverityLow, true, "session expired by sweep", map[string]string{
				"reason": ReasonExpired,
			})
		}
	}
	return count, nil
}

// TerminateAllForUser ends every active session of a user in a tenant, for
// forced logout after a password change or a detected compromise.
func (m *Manager) TerminateAllForUser(ctx context.Context, userID, tenantID, reason string) (int, error) {
	if reason == "" {
		reason = ReasonAdministrative
	}
	sessions, err := m.store.ListByUser(ctx, tenantID, userID)
	if err != nil {
		return 0, err
	}

	now := m.now.Now()
	count := 0
	for _, listed := range sessions {
		if !listed.IsActive {
			continue
		}
		changed := false
		_, err := m.store.Update(ctx, listed.SessionID, func(s *Session) (bool, error) {
			changed = s.deactivate(reason, now)
			if changed {
				s.setMeta(MetaTerminationReason, reason)
			}
			return changed, nil
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return count, err
		}
		if changed {
			count++
		}
	}

	if count > 0 {
		m.emit(ctx, &Session{UserID: userID, TenantID: tenantID}, EventSessionsTerminated, audit.SeverityMedium, true,
			"all user sessions terminated", map[string]string{
				"reason": reason,
				"count":  strconv.Itoa(count),
			})
	}
	return count, nil
}

// PurgeInactive deletes terminal sessions that ended more than olderThan
// ago. A non-positive olderThan uses the configured retention.
func (m *Manager) PurgeInactive(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = m.cfg.Retention
	}
	cutoff := m.now.Now().Add(-olderThan)

	var due []string
	err := m.store.Scan(ctx, func(s *Session) error {
		if s.IsActive {
			return nil
		}
		ended := s.EndedAt
		if ended.IsZero() {
			ended = s.ExpiresAt
		}
		if ended.Before(cutoff) {
			due = append(due, s.SessionID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i, id := range due {
		if err := m.store.Delete(ctx, id); err != nil {
			return i, err
		}
	}
	return len(due), nil
}

func (m *Manager) emit(ctx context.Context, s *Session, eventType string, severity audit.Severity, success bool, description string, meta map[string]string) {
	m.sink.Emit(ctx, audit.Event{
		ID:          uuid.NewString(),
		Timestamp:   m.now.Now().UTC(),
		EventType:   eventType,
		Severity:    severity,
		Description: description,
		UserID:      s.UserID,
		TenantID:    s.TenantID,
		SessionID:   s.SessionID,
		IP:          s.IPAddress,
		UserAgent:   s.UserAgent,
		Success:     success,
		Metadata:    meta,
	})
}
