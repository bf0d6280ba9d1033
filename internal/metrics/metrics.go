// Package metrics holds the Prometheus collectors of the reporting core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics bundles the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	cacheRequests   *prometheus.CounterVec
	exports         *prometheus.CounterVec
	previewDuration *prometheus.HistogramVec
	tasks           *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_cache_requests_total",
			Help: "Compiled SQL cache lookups by result.",
		}, []string{"result"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_exports_total",
			Help: "Export state transitions by resulting status.",
		}, []string{"status"}),
		previewDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "report_preview_duration_seconds",
			Help:    "Latency of preview requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_tasks_total",
			Help: "Background tasks processed by name and outcome.",
		}, []string{"task", "outcome"}),
	}
	m.registry.MustRegister(
		m.cacheRequests,
		m.exports,
		m.previewDuration,
		m.tasks,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CacheRequest counts one cache lookup.
func (m *Metrics) CacheRequest(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

// ExportTransition counts an export reaching status.
func (m *Metrics) ExportTransition(status string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(status).Inc()
}

// ObservePreview records the latency of one preview.
func (m *Metrics) ObservePreview(start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.previewDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// Task counts one processed background task.
func (m *Metrics) Task(name string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.tasks.WithLabelValues(name, outcome).Inc()
}
