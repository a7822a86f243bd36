package otel

import (
	"context"
	"errors"
	"fmt"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Constructor errors.
var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is what the exporter observes. *goGate.Gateway satisfies it.
type MetricsSource interface {
	MetricsSnapshot() goGate.MetricsSnapshot
	AuditDropped() uint64
}

// BucketAttribute keys the cumulative bucket gauge.
const BucketAttribute = "le"

type counterBinding struct {
	id  goGate.MetricID
	ins metric.Int64ObservableCounter
}

// latencyBinding observes one gateway histogram as a bucket gauge
// carrying an "le" attribute plus a sample count gauge.
type latencyBinding struct {
	id      goGate.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	bounds  []metric.ObserveOption
}

// Exporter publishes gateway counters as OpenTelemetry observable
// instruments.
type Exporter struct {
	source       MetricsSource
	registration metric.Registration
	counters     []counterBinding
	latencies    []latencyBinding
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers instruments on meter that observe gw.
func NewExporter(meter metric.Meter, gw *goGate.Gateway) (*Exporter, error) {
	if gw == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, gw)
}

// NewExporterFromSource registers instruments on meter that observe source.
// Every collection cycle takes one snapshot.
func NewExporterFromSource(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterBinding{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	labels := internaldefs.BucketLabels()
	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative bucket counts."))
		if err != nil {
			return nil, fmt.Errorf("bucket gauge %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("count gauge %s: %w", def.Name, err)
		}
		lb := latencyBinding{id: def.ID, buckets: buckets, count: count}
		for _, label := range labels {
			set := attribute.NewSet(attribute.String(BucketAttribute, label))
			lb.bounds = append(lb.bounds, metric.WithAttributeSet(set))
		}
		e.latencies = append(e.latencies, lb)
		observables = append(observables, buckets, count)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snap.Counters[c.id]))
	}
	for _, lb := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[lb.id]))
		for i, opt := range lb.bounds {
			o.ObserveInt64(lb.buckets, int64(cumulative[i]), opt)
		}
		o.ObserveInt64(lb.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the observation callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
