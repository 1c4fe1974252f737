// Package metrics exposes prometheus instrumentation for pipeline runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Runs counts completed pipeline runs by outcome
	// (accepted, exhausted, error).
	Runs *prometheus.CounterVec

	// Attempts counts corrector loop attempts.
	Attempts prometheus.Counter

	// Diagnostics counts validation diagnostics by severity.
	Diagnostics *prometheus.CounterVec

	// Duration observes end-to-end pipeline run time in seconds.
	Duration prometheus.Histogram
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "omegacode_pipeline_runs_total",
			Help: "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		Attempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "omegacode_loop_attempts_total",
			Help: "Corrector loop attempts across all runs.",
		}),
		Diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "omegacode_diagnostics_total",
			Help: "Validation diagnostics by severity.",
		}, []string{"severity"}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "omegacode_pipeline_duration_seconds",
			Help:    "End-to-end pipeline run duration.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
