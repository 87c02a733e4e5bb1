// Package otel binds client metrics to an OpenTelemetry Meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per client counter and
// an Int64ObservableGauge per histogram bucket, all fed by one callback that
// reads [sprada.Client.MetricsSnapshot] on each collection. The caller owns
// the MeterProvider.
package otel
