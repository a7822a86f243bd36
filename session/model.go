package session

import (
	"strconv"
	"time"
)

// Metadata keys written by the session lifecycle.
const (
	MetaInvalidationReason = "invalidation_reason"
	MetaTerminationReason  = "termination_reason"
	MetaDeviceMismatches   = "device_mismatches"
)

// Invalidation reasons recorded in [MetaInvalidationReason].
const (
	ReasonLimitExceeded       = "session_limit_exceeded"
	ReasonExpired             = "expired"
	ReasonLogout              = "logout"
	ReasonDeviceMismatchLimit = "device_mismatch_threshold"
	ReasonAdministrative      = "administrative_termination"
)

// Session is one authenticated client context bound to a user within a tenant.
type Session struct {
	SessionID         string            `json:"session_id"`
	UserID            string            `json:"user_id"`
	TenantID          string            `json:"tenant_id"`
	IPAddress         string            `json:"ip_address,omitempty"`
	UserAgent         string            `json:"user_agent,omitempty"`
	DeviceFingerprint string            `json:"device_fingerprint,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	LastActivity      time.Time         `json:"last_activity"`
	ExpiresAt         time.Time         `json:"expires_at"`
	EndedAt           time.Time         `json:"ended_at,omitempty"`
	MFAVerified       bool              `json:"mfa_verified"`
	IsActive          bool              `json:"is_active"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether s reached its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Live reports whether s is active and unexpired at now.
func (s *Session) Live(now time.Time) bool {
	return s.IsActive && !s.Expired(now)
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// InvalidationReason returns the recorded invalidation reason, if any.
func (s *Session) InvalidationReason() string {
	return s.Metadata[MetaInvalidationReason]
}

// DeviceMismatches returns the number of fingerprint mismatches recorded.
func (s *Session) DeviceMismatches() int {
	n, _ := strconv.Atoi(s.Metadata[MetaDeviceMismatches])
	return n
}

func (s *Session) setMeta(key, value string) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]string, 2)
	}
	s.Metadata[key] = value
}

// deactivate moves s to its terminal state. It returns false when s was
// already inactive, leaving the first recorded reason untouched.
func (s *Session) deactivate(reason string, now time.Time) bool {
	if !s.IsActive {
		return false
	}
	s.IsActive = false
	s.EndedAt = now
	s.setMeta(MetaInvalidationReason, reason)
	return true
}
