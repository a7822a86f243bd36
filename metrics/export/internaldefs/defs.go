package internaldefs

import (
	"strconv"

	goGate "github.com/MrEthical07/goGate"
)

// CounterDef maps a gateway counter to its exported name.
type CounterDef struct {
	ID   goGate.MetricID
	Name string
	Help string
}

// HistogramDef maps a gateway histogram to its exported name.
type HistogramDef struct {
	ID   goGate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: goGate.MetricRequestAuthenticated, Name: "gogate_request_authenticated_total", Help: "Requests that passed every gateway check."},
	{ID: goGate.MetricRateLimited, Name: "gogate_rate_limited_total", Help: "Requests rejected by the rate limiter."},
	{ID: goGate.MetricCSRFRejected, Name: "gogate_csrf_rejected_total", Help: "Requests rejected by CSRF validation."},
	{ID: goGate.MetricInvalidTenant, Name: "gogate_invalid_tenant_total", Help: "Requests with an unresolvable tenant context."},
	{ID: goGate.MetricMissingCredential, Name: "gogate_missing_credential_total", Help: "Requests without a session token."},
	{ID: goGate.MetricInvalidSession, Name: "gogate_invalid_session_total", Help: "Requests with an invalid token or session."},
	{ID: goGate.MetricDeviceMismatch, Name: "gogate_device_mismatch_total", Help: "Session validations with a device fingerprint mismatch."},
	{ID: goGate.MetricMFARequired, Name: "gogate_mfa_required_total", Help: "Requests rejected pending MFA verification."},
	{ID: goGate.MetricPermissionDenied, Name: "gogate_permission_denied_total", Help: "Requests rejected for missing permissions."},
	{ID: goGate.MetricTenantIsolationViolation, Name: "gogate_tenant_isolation_violation_total", Help: "Sessions presented against a foreign tenant."},
	{ID: goGate.MetricSystemError, Name: "gogate_system_error_total", Help: "Collaborator failures and recovered panics."},
	{ID: goGate.MetricServiceAuthenticated, Name: "gogate_service_authenticated_total", Help: "Accepted internal service calls."},
	{ID: goGate.MetricServiceAuthFailed, Name: "gogate_service_auth_failed_total", Help: "Rejected internal service calls."},
	{ID: goGate.MetricSessionCreated, Name: "gogate_session_created_total", Help: "Sessions opened by login."},
	{ID: goGate.MetricLogout, Name: "gogate_logout_total", Help: "Single-session logouts."},
	{ID: goGate.MetricLogoutAll, Name: "gogate_logout_all_total", Help: "Logout-all operations."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goGate.MetricAuthenticateLatency, Name: "gogate_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const (
	AuditDroppedName = "gogate_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds, taken from
// [goGate.LatencyBounds]. The last gateway bucket is +Inf.
var HistogramUpperBounds = func() []float64 {
	out := make([]float64, len(goGate.LatencyBounds))
	for i, d := range goGate.LatencyBounds {
		out[i] = d.Seconds()
	}
	return out
}()

// BucketLabels renders each bucket bound as a Prometheus style "le"
// value, +Inf included.
func BucketLabels() []string {
	out := make([]string, 0, len(HistogramUpperBounds)+1)
	for _, b := range HistogramUpperBounds {
		out = append(out, strconv.FormatFloat(b, 'g', -1, 64))
	}
	return append(out, "+Inf")
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
