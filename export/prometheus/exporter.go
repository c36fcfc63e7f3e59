// Package prometheus bridges the engine's in-process counter table to a
// Prometheus registry. The engine itself has no Prometheus dependency;
// callers that want scraping import this package and register a
// Collector.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	internalmetrics "github.com/flowforge-io/aegis/internal/metrics"
)

const namespace = "aegis"

// Source is anything that can produce a metrics snapshot. *aegis.Engine
// satisfies it via MetricsSnapshot.
type Source interface {
	MetricsSnapshot() internalmetrics.Snapshot
}

// Collector implements prometheus.Collector over a Source. Counters are
// re-described on every scrape from the snapshot, so the collector holds
// no per-metric state of its own.
type Collector struct {
	source Source
	descs  [internalmetrics.MetricIDCount]*prometheus.Desc
}

// NewCollector creates a Collector reading from source.
func NewCollector(source Source) *Collector {
	c := &Collector{source: source}
	for id := internalmetrics.MetricID(0); id < internalmetrics.MetricIDCount; id++ {
		c.descs[id] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", id.String()+"_total"),
			"Cumulative count of "+id.String()+" events.",
			nil, nil,
		)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.MetricsSnapshot()
	for id := internalmetrics.MetricID(0); id < internalmetrics.MetricIDCount; id++ {
		ch <- prometheus.MustNewConstMetric(c.descs[id], prometheus.CounterValue, float64(snap.Counters[id]))
	}
}

// Handler returns an http.Handler serving the given source on a fresh
// registry, for callers that do not manage their own.
func Handler(source Source) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
