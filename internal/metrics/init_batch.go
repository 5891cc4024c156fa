package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initBatchMetrics() {
	r.BatchJobsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepsim_batch_jobs_total",
			Help: "Total batch jobs by mode and outcome",
		},
		[]string{"mode", "status"},
	)

	r.BatchJobDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prepsim_batch_job_duration_seconds",
			Help:    "Time to simulate and export one batch job",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	r.ExperimentsSavedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "prepsim_experiments_saved_total",
			Help: "Total experiments written to the results store",
		},
	)
}
