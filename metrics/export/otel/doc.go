// Package otel exports gateway counters as OpenTelemetry observable
// instruments.
//
// [NewExporter] registers an Int64ObservableCounter per gateway counter and
// an Int64ObservableGauge per latency bucket on a caller-supplied Meter. A
// single callback reads Gateway.MetricsSnapshot on each collection cycle.
package otel
