// Package prometheus exports gateway counters through
// github.com/prometheus/client_golang.
//
// [Collector] implements prometheus.Collector and can be registered in any
// registry. Counter names follow gogate_*_total; the authenticate latency
// histogram is gogate_authenticate_latency_seconds and appears only when
// latency histograms are enabled.
package prometheus
