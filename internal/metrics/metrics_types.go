// Package metrics exposes Prometheus instruments for simulation progress,
// ensemble construction and batch exports.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all prepsim metrics on a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	// Simulation
	StepsTotal       prometheus.Counter
	TransitionsTotal *prometheus.CounterVec
	StateCount       *prometheus.GaugeVec
	CurrentWeek      prometheus.Gauge

	// Ensembles
	RunsBuiltTotal        prometheus.Counter
	EnsembleBuildDuration prometheus.Histogram

	// Batch
	BatchJobsTotal   *prometheus.CounterVec
	BatchJobDuration prometheus.Histogram

	// Store
	ExperimentsSavedTotal prometheus.Counter

	weekMu  sync.Mutex
	maxWeek int
}

// NewRegistry creates a registry with every metric initialized.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initSimulationMetrics()
	r.initBatchMetrics()
	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
