package goGate

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/goGate/csrf"
)

var (
	// ErrRateLimitExceeded rejects a caller over its fixed-window limit.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrCSRFViolation rejects a state-changing request without a matching
	// double-submit token.
	ErrCSRFViolation = errors.New("csrf violation")
	// ErrInvalidTenantContext rejects a request whose tenant is missing,
	// unknown or inactive.
	ErrInvalidTenantContext = errors.New("invalid tenant context")
	// ErrMissingCredential rejects a request carrying no session token.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidSession rejects a token or session that does not validate.
	ErrInvalidSession = errors.New("invalid session")
	// ErrMFARequired rejects a sensitive request on a session without MFA.
	ErrMFARequired = errors.New("mfa required")
	// ErrPermissionDenied rejects a caller whose role lacks the route
	// permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTenantIsolationViolation rejects a session used against another
	// tenant.
	ErrTenantIsolationViolation = errors.New("tenant isolation violation")
	// ErrServiceCredentialRequired rejects a service call without its
	// headers.
	ErrServiceCredentialRequired = errors.New("service credential required")
	// ErrServiceAuthFailure rejects a service call with a bad secret.
	ErrServiceAuthFailure = errors.New("service authentication failed")
	// ErrSystemError reports a collaborator failure or a recovered panic.
	ErrSystemError = errors.New("authentication system error")
	// ErrGatewayClosed is returned by calls after [Gateway.Close].
	ErrGatewayClosed = errors.New("gateway closed")
)

// Stable error codes carried in rejection bodies.
const (
	CodeRateLimitExceeded        = "RATE_LIMIT_EXCEEDED"
	CodeCSRFTokenInvalid         = "CSRF_TOKEN_INVALID"
	CodeInvalidTenant            = "INVALID_TENANT"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeMFARequired              = "MFA_REQUIRED"
	CodeForbidden                = "FORBIDDEN"
	CodeTenantIsolationViolation = "TENANT_ISOLATION_VIOLATION"
	CodeServiceAuthRequired      = "SERVICE_AUTH_REQUIRED"
	CodeServiceAuthFailed        = "SERVICE_AUTH_FAILED"
	CodeAuthSystemError          = "AUTH_SYSTEM_ERROR"
)

type classification struct {
	err      error
	status   int
	code     string
	message  string
	metric   MetricID
	event    string
	severity Severity
}

var classifications = []classification{
	{ErrRateLimitExceeded, http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded",
		MetricRateLimited, EventRateLimitExceeded, SeverityMedium},
	{ErrCSRFViolation, http.StatusForbidden, CodeCSRFTokenInvalid, "Invalid CSRF token",
		MetricCSRFRejected, EventCSRFViolation, SeverityHigh},
	{ErrInvalidTenantContext, http.StatusBadRequest, CodeInvalidTenant, "Invalid tenant context",
		MetricInvalidTenant, EventInvalidTenantContext, SeverityMedium},
	{ErrMissingCredential, http.StatusUnauthorized, CodeUnauthorized, "Missing authentication token",
		MetricMissingCredential, EventMissingCredential, SeverityLow},
	{ErrInvalidSession, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired session",
		MetricInvalidSession, EventInvalidSession, SeverityMedium},
	{ErrMFARequired, http.StatusUnauthorized, CodeMFARequired, "MFA verification required",
		MetricMFARequired, EventMFARequired, SeverityMedium},
	{ErrPermissionDenied, http.StatusForbidden, CodeForbidden, "Insufficient permissions",
		MetricPermissionDenied, EventPermissionDenied, SeverityMedium},
	{ErrTenantIsolationViolation, http.StatusUnauthorized, CodeTenantIsolationViolation, "Tenant isolation violation",
		MetricTenantIsolationViolation, EventTenantIsolationViolation, SeverityHigh},
	{ErrServiceCredentialRequired, http.StatusUnauthorized, CodeServiceAuthRequired, "Missing service credentials",
		MetricServiceAuthFailed, EventServiceAuthFailed, SeverityMedium},
	{ErrServiceAuthFailure, http.StatusUnauthorized, CodeServiceAuthFailed, "Invalid service credentials",
		MetricServiceAuthFailed, EventServiceAuthFailed, SeverityHigh},
}

var systemError = classification{ErrSystemError, http.StatusInternalServerError, CodeAuthSystemError, "Authentication system error",
	MetricSystemError, EventSystemError, SeverityHigh}

// Classify maps err to the HTTP status and stable code of its rejection.
// Errors outside the gateway set classify as a system error.
func Classify(err error) (status int, code string) {
	c := classify(err)
	return c.status, c.code
}

func classify(err error) classification {
	for _, c := range classifications {
		if errors.Is(err, c.err) {
			return c
		}
	}
	return systemError
}

// publicMessage is the client-facing text for err. It never carries
// collaborator detail.
func publicMessage(err error) string {
	if errors.Is(err, ErrCSRFViolation) && errors.Is(err, csrf.ErrMissingToken) {
		return csrf.ErrMissingToken.Error()
	}
	return classify(err).message
}
