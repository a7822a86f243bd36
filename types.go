package goGate

import (
	"net/http"
	"time"

	"github.com/MrEthical07/goGate/session"
	"github.com/MrEthical07/goGate/tenant"
)

// RequestInfo describes the inbound request an authentication decision was
// made for.
type RequestInfo struct {
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent,omitempty"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// AuthContext is the identity a request proceeds under. It is built once
// per request after every check passed and is never persisted.
type AuthContext struct {
	UserID      string          `json:"user_id"`
	TenantID    string          `json:"tenant_id"`
	SessionID   string          `json:"session_id"`
	UserRole    string          `json:"user_role,omitempty"`
	Permissions []string        `json:"permissions"`
	MFAVerified bool            `json:"mfa_verified"`
	Tenant      *tenant.Context `json:"tenant,omitempty"`
	Request     RequestInfo     `json:"request"`
}

// HasPermission reports whether the context carries perm or the wildcard.
func (a *AuthContext) HasPermission(perm string) bool {
	if a == nil {
		return false
	}
	for _, p := range a.Permissions {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

// ServiceContext is the identity of an authenticated internal service.
type ServiceContext struct {
	ServiceID   string      `json:"service_id"`
	Permissions []string    `json:"permissions"`
	Request     RequestInfo `json:"request"`
}

// RouteOptions are the per-route requirements of [Gateway.Authenticate].
type RouteOptions struct {
	// Permission, when set, must be granted to the caller's role.
	Permission string
	// RequireMFA demands an MFA-verified session regardless of path.
	RequireMFA bool
	// SkipTenant disables tenant resolution and the isolation check.
	SkipTenant bool
}

// ResponseBody is the JSON body of a rejection.
type ResponseBody struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// Response is a fully formed rejection the caller writes verbatim.
type Response struct {
	Status  int
	Headers http.Header
	Body    ResponseBody
}

// Decision is the outcome of [Gateway.Authenticate]. Exactly one of Context
// and Response is set.
type Decision struct {
	Proceed  bool
	Context  *AuthContext
	Response *Response
	// Err is the classified cause of a rejection, for logging by callers.
	Err error
}

// ServiceDecision is the outcome of [Gateway.AuthenticateService].
type ServiceDecision struct {
	Proceed  bool
	Context  *ServiceContext
	Response *Response
	Err      error
}

// LoginParams describes a session to open after the caller verified the
// user's primary credentials.
type LoginParams struct {
	UserID      string
	TenantID    string
	MFAVerified bool
	Metadata    map[string]string
	// Request supplies the client IP, user agent and device fingerprint.
	Request *http.Request
}

// LoginResult carries the new session and the token that references it.
type LoginResult struct {
	Session *session.Session
	Token   string
	Cookie  *http.Cookie
}
