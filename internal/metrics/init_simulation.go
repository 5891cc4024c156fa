package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSimulationMetrics() {
	r.StepsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "prepsim_steps_total",
			Help: "Total number of simulated run-weeks",
		},
	)

	r.TransitionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepsim_transitions_total",
			Help: "Total state transitions by kind",
		},
		[]string{"kind"},
	)

	r.StateCount = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prepsim_state_count",
			Help: "People in each state after the latest step, per run",
		},
		[]string{"run", "state"},
	)

	r.CurrentWeek = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "prepsim_current_week",
			Help: "Latest week reached by any run",
		},
	)

	r.RunsBuiltTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "prepsim_runs_built_total",
			Help: "Total number of runs constructed",
		},
	)

	r.EnsembleBuildDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prepsim_ensemble_build_duration_seconds",
			Help:    "Time to build an ensemble of runs",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)
}
