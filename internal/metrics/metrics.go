// Package metrics exposes Prometheus instrumentation for the scoring
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors on a private
// registry so tests can create as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	BatchesScored   *prometheus.CounterVec
	MerchantsScored prometheus.Counter
	AnomaliesFound  prometheus.Counter
	ModelErrors     prometheus.Counter
	PipelineSeconds prometheus.Histogram
}

// New creates and registers the pipeline collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		BatchesScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "batches_scored_total",
			Help:      "Number of transaction batches scored, by outcome.",
		}, []string{"outcome"}),
		MerchantsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "merchants_scored_total",
			Help:      "Number of merchant verdicts produced.",
		}),
		AnomaliesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "anomalies_total",
			Help:      "Number of merchants flagged anomalous.",
		}),
		ModelErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "model_errors_total",
			Help:      "Number of failed reconstruction model calls.",
		}),
		PipelineSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "harrier",
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of a full pipeline run.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.BatchesScored,
		m.MerchantsScored,
		m.AnomaliesFound,
		m.ModelErrors,
		m.PipelineSeconds,
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
