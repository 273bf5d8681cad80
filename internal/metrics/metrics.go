// Package metrics exposes engine counters on a dedicated registry so the
// daemon's /metrics endpoint only reports intake series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine's instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	RowsSeen           prometheus.Counter
	JobsQueued         prometheus.Counter
	ApplicationsPosted prometheus.Counter
	JobsFailed         prometheus.Counter
	Decisions          *prometheus.CounterVec
	QueueDepth         prometheus.Gauge
}

// New builds the metric set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RowsSeen: factory.NewCounter(prometheus.CounterOpts{
			Name: "intake_rows_seen_total",
			Help: "Response rows observed across ingestion passes.",
		}),
		JobsQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "intake_jobs_queued_total",
			Help: "Publication jobs enqueued.",
		}),
		ApplicationsPosted: factory.NewCounter(prometheus.CounterOpts{
			Name: "intake_applications_posted_total",
			Help: "Applications published to chat channels.",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "intake_jobs_failed_total",
			Help: "Queue drains halted by a failing job.",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_decisions_total",
			Help: "Finalized decisions by status and source.",
		}, []string{"status", "source"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "intake_queue_depth",
			Help: "Jobs currently waiting in the publication queue.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
