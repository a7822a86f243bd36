package otel

import (
	"context"
	"sync"
	"testing"

	goGate "github.com/MrEthical07/goGate"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// stubSource serves a mutable snapshot guarded by a mutex.
type stubSource struct {
	mu       sync.Mutex
	counters map[goGate.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (s *stubSource) MetricsSnapshot() goGate.MetricsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := goGate.MetricsSnapshot{
		Counters:   make(map[goGate.MetricID]uint64, len(s.counters)),
		Histograms: map[goGate.MetricID][]uint64{},
	}
	for id, v := range s.counters {
		snap.Counters[id] = v
	}
	snap.Histograms[goGate.MetricAuthenticateLatency] = append([]uint64(nil), s.latency...)
	return snap
}

func (s *stubSource) AuditDropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *stubSource) set(id goGate.MetricID, v uint64) {
	s.mu.Lock()
	s.counters[id] = v
	s.mu.Unlock()
}

func collect(t *testing.T, src MetricsSource) metricdata.ResourceMetrics {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("gogate-test")

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	t.Cleanup(func() {
		if err := exp.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumValue(rm metricdata.ResourceMetrics, name string) int64 {
	m, ok := findMetric(rm, name)
	if !ok {
		return -1
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		return -1
	}
	return sum.DataPoints[0].Value
}

func TestExporterObservesCounters(t *testing.T) {
	src := &stubSource{
		counters: map[goGate.MetricID]uint64{
			goGate.MetricRequestAuthenticated: 3,
			goGate.MetricCSRFRejected:         2,
		},
		dropped: 1,
	}
	rm := collect(t, src)

	cases := map[string]int64{
		"gogate_request_authenticated_total": 3,
		"gogate_csrf_rejected_total":         2,
		"gogate_rate_limited_total":          0,
		"gogate_audit_dropped_total":         1,
	}
	for name, want := range cases {
		if got := sumValue(rm, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestExporterObservesLatencyBuckets(t *testing.T) {
	src := &stubSource{
		counters: map[goGate.MetricID]uint64{},
		latency:  []uint64{2, 0, 1, 0, 0, 0, 0, 1},
	}
	rm := collect(t, src)

	m, ok := findMetric(rm, "gogate_authenticate_latency_seconds_bucket")
	if !ok {
		t.Fatal("bucket gauge not exported")
	}
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("bucket data is %T", m.Data)
	}
	if len(gauge.DataPoints) != 8 {
		t.Fatalf("bucket points = %d, want 8", len(gauge.DataPoints))
	}
	byLabel := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		v, _ := dp.Attributes.Value(BucketAttribute)
		byLabel[v.AsString()] = dp.Value
	}
	want := map[string]int64{"0.005": 2, "0.01": 2, "0.025": 3, "0.5": 3, "+Inf": 4}
	for label, v := range want {
		if byLabel[label] != v {
			t.Errorf("le=%s = %d, want %d", label, byLabel[label], v)
		}
	}

	cm, ok := findMetric(rm, "gogate_authenticate_latency_seconds_count")
	if !ok {
		t.Fatal("count gauge not exported")
	}
	if g := cm.Data.(metricdata.Gauge[int64]); g.DataPoints[0].Value != 4 {
		t.Fatalf("count = %d, want 4", g.DataPoints[0].Value)
	}
}

func TestExporterConstructorErrors(t *testing.T) {
	meter := sdkmetric.NewMeterProvider().Meter("gogate-test")
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("nil gateway: got %v", err)
	}
	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("nil source: got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &stubSource{}); err != ErrNilMeter {
		t.Fatalf("nil meter: got %v", err)
	}
}

func TestExporterCollectWhileSourceChanges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("gogate-test")
	src := &stubSource{counters: map[goGate.MetricID]uint64{}}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.set(goGate.MetricRequestAuthenticated, v)
			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i))
	}
	wg.Wait()
}
