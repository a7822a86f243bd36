package goGate

import (
	"context"
	"io"
	"log/slog"

	"github.com/MrEthical07/goGate/internal/audit"
	"github.com/google/uuid"
)

// SecurityEvent is one audit record emitted at a pipeline decision point.
type SecurityEvent = audit.Event

// Severity ranks a [SecurityEvent].
type Severity = audit.Severity

// AuditSink receives security events.
type AuditSink = audit.Sink

// Event severities.
const (
	SeverityLow      = audit.SeverityLow
	SeverityMedium   = audit.SeverityMedium
	SeverityHigh     = audit.SeverityHigh
	SeverityCritical = audit.SeverityCritical
)

// Event types emitted by the gateway. Session lifecycle events use the
// session package names.
const (
	EventRateLimitExceeded        = "rate_limit_exceeded"
	EventCSRFViolation            = "csrf_violation"
	EventInvalidTenantContext     = "invalid_tenant_context"
	EventMissingCredential        = "missing_credential"
	EventInvalidSession           = "invalid_session"
	EventMFARequired              = "mfa_required"
	EventPermissionDenied         = "permission_denied"
	EventTenantIsolationViolation = "tenant_isolation_violation"
	EventSystemError              = "auth_system_error"
	EventRequestAuthenticated     = "request_authenticated"
	EventServiceAuthFailed        = "service_auth_failed"
	EventServiceAuthenticated     = "service_authenticated"
	EventLogin                    = "login"
	EventLogout                   = "logout"
)

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// NewChannelSink returns a sink that buffers events on a channel.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink writing structured log records.
func NewSlogSink(logger *slog.Logger) *audit.SlogSink {
	return audit.NewSlogSink(logger)
}

// MultiSink fans events out to several sinks.
type MultiSink = audit.MultiSink

type eventOutcome struct {
	eventType   string
	severity    Severity
	description string
	code        string
	success     bool
	userID      string
	tenantID    string
	sessionID   string
	meta        map[string]string
}

func (g *Gateway) emit(ctx context.Context, req RequestInfo, o eventOutcome) {
	g.audit.Emit(ctx, SecurityEvent{
		ID:          uuid.NewString(),
		Timestamp:   g.now(),
		EventType:   o.eventType,
		Severity:    o.severity,
		Description: o.description,
		UserID:      o.userID,
		TenantID:    o.tenantID,
		SessionID:   o.sessionID,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		Method:      req.Method,
		Path:        req.Path,
		Success:     o.success,
		Code:        o.code,
		Metadata:    o.meta,
	})
}
