// Package prometheus exposes client metrics through client_golang.
//
// [Collector] turns each scrape into a fresh [sprada.Client.MetricsSnapshot]
// and emits const counters named sprada_*_total plus the two latency
// histograms. [PrometheusExporter] wraps a Collector in a private registry and
// serves it with promhttp, so nothing is registered globally.
package prometheus
