package prometheus

import (
	"bytes"
	"fmt"
	"net/http"

	sprada "github.com/Khatrip009/adminsprada-sub000"
	"github.com/Khatrip009/adminsprada-sub000/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

type metricsSource interface {
	MetricsSnapshot() sprada.MetricsSnapshot
	AuditDropped() uint64
}

// Collector publishes a client's counters and histograms as const metrics
// read from a fresh snapshot on every scrape.
type Collector struct {
	source       metricsSource
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped *prometheus.Desc
}

type counterDesc struct {
	id   sprada.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   sprada.MetricID
	desc *prometheus.Desc
}

// NewCollector returns a Collector for source.
func NewCollector(source metricsSource) *Collector {
	c := &Collector{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		auditDropped: prometheus.NewDesc(
			"sprada_audit_dropped_total",
			"Audit events dropped because the dispatcher buffer was full.",
			nil, nil,
		),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.counters {
		ch <- m.desc
	}
	for _, h := range c.histograms {
		ch <- h.desc
	}
	ch <- c.auditDropped
}

// Collect implements prometheus.Collector. Counters that the snapshot does not
// carry, as happens when metrics are disabled, are skipped.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.source.MetricsSnapshot()
	for _, m := range c.counters {
		v, ok := snapshot.Counters[m.id]
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(m.desc, prometheus.CounterValue, float64(v))
	}
	for _, h := range c.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		buckets := internaldefs.NormalizeBuckets(raw)
		cumulative := internaldefs.CumulativeBuckets(buckets)
		upper := make(map[float64]uint64, len(internaldefs.HistogramBoundValues))
		for i, bound := range internaldefs.HistogramBoundValues {
			upper[bound] = cumulative[i]
		}
		ch <- prometheus.MustNewConstHistogram(
			h.desc,
			cumulative[len(cumulative)-1],
			internaldefs.ApproximateSum(buckets),
			upper,
		)
	}
	ch <- prometheus.MustNewConstMetric(c.auditDropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

// PrometheusExporter owns a private registry holding one Collector.
type PrometheusExporter struct {
	collector *Collector
	registry  *prometheus.Registry
}

// NewPrometheusExporter creates an exporter reading from client.
func NewPrometheusExporter(client *sprada.Client) *PrometheusExporter {
	return NewPrometheusExporterFromSource(client)
}

// NewPrometheusExporterFromSource creates an exporter reading from any source
// that can produce a metrics snapshot.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	collector := NewCollector(source)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	return &PrometheusExporter{collector: collector, registry: registry}
}

// Collector returns the underlying collector, for callers that scrape through
// their own registry.
func (p *PrometheusExporter) Collector() *Collector {
	return p.collector
}

// Handler serves the exporter's registry in the Prometheus exposition format.
func (p *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Render gathers the registry and returns it in the text exposition format.
func (p *PrometheusExporter) Render() (string, error) {
	families, err := p.registry.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}
