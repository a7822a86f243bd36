package goGate

import (
	"sync/atomic"
	"time"
)

// MetricID names one gateway counter.
type MetricID uint16

const (
	// MetricRequestAuthenticated counts requests that passed every check.
	MetricRequestAuthenticated MetricID = iota
	// MetricRateLimited counts requests rejected by the rate limiter.
	MetricRateLimited
	// MetricCSRFRejected counts CSRF rejections.
	MetricCSRFRejected
	// MetricInvalidTenant counts unresolvable tenant contexts.
	MetricInvalidTenant
	// MetricMissingCredential counts requests without a session token.
	MetricMissingCredential
	// MetricInvalidSession counts rejected tokens and sessions.
	MetricInvalidSession
	// MetricDeviceMismatch counts fingerprint mismatches seen on validation.
	MetricDeviceMismatch
	// MetricMFARequired counts MFA gate rejections.
	MetricMFARequired
	// MetricPermissionDenied counts permission rejections.
	MetricPermissionDenied
	// MetricTenantIsolationViolation counts cross-tenant session use.
	MetricTenantIsolationViolation
	// MetricSystemError counts collaborator failures and recovered panics.
	MetricSystemError
	// MetricServiceAuthenticated counts accepted service calls.
	MetricServiceAuthenticated
	// MetricServiceAuthFailed counts rejected service calls.
	MetricServiceAuthFailed
	// MetricSessionCreated counts sessions opened by Login.
	MetricSessionCreated
	// MetricLogout counts single-session logouts.
	MetricLogout
	// MetricLogoutAll counts logout-all operations.
	MetricLogoutAll
	// MetricAuthenticateLatency is the Authenticate latency histogram.
	MetricAuthenticateLatency
	metricIDCount
)

// LatencyBounds are the upper bounds of the finite latency buckets. A
// final bucket collects everything slower.
var LatencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const (
	histBucketCount = len(LatencyBounds) + 1
	cacheLineSize   = 64
)

// paddedCounter keeps hot counters on separate cache lines.
type paddedCounter struct {
	atomic.Uint64
	_ [cacheLineSize - 8]byte
}

type latencyHistogram struct {
	buckets [histBucketCount]atomic.Uint64
	sumNs   atomic.Uint64
}

// Metrics holds lock-free gateway counters. A nil *Metrics is a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	latency       latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
// Histogram slices hold per-bucket (not cumulative) counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	// LatencySum is the total observed Authenticate latency.
	LatencySum time.Duration
}

// NewMetrics creates a [Metrics] from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricAuthenticateLatency {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d in the histogram of id. Only
// [MetricAuthenticateLatency] carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricAuthenticateLatency {
		return
	}
	if d < 0 {
		d = 0
	}
	m.latency.buckets[bucketIndex(d)].Add(1)
	m.latency.sumNs.Add(uint64(d))
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricAuthenticateLatency {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < MetricAuthenticateLatency; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.latency.buckets[i].Load()
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
		s.LatencySum = time.Duration(m.latency.sumNs.Load())
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range LatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBounds)
}
