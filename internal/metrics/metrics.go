package metrics

import (
	"strconv"
	"time"

	"github.com/annebeks/prepsim/internal/epidemic"
	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/simulation"
)

var _ simulation.Observer = (*Registry)(nil)

// ObserveStep records one run-week. It implements simulation.Observer.
func (r *Registry) ObserveStep(run, week int, tr epidemic.Transitions, snap models.Snapshot) {
	r.StepsTotal.Inc()
	r.TransitionsTotal.WithLabelValues("infection").Add(float64(tr.Infections))
	r.TransitionsTotal.WithLabelValues("acute_to_chronic").Add(float64(tr.AcuteToChronic))
	r.TransitionsTotal.WithLabelValues("chronic_to_aids").Add(float64(tr.ChronicToAIDS))
	r.TransitionsTotal.WithLabelValues("death").Add(float64(tr.Deaths))

	runLabel := strconv.Itoa(run + 1)
	for _, st := range models.AllStates {
		r.StateCount.WithLabelValues(runLabel, st.String()).Set(float64(snap.Get(st)))
	}

	// Runs step concurrently; only ever move the week gauge forward.
	r.weekMu.Lock()
	if week > r.maxWeek {
		r.maxWeek = week
		r.CurrentWeek.Set(float64(week))
	}
	r.weekMu.Unlock()
}

// RecordEnsembleBuilt records a successfully constructed ensemble.
func (r *Registry) RecordEnsembleBuilt(runs int, duration time.Duration) {
	r.RunsBuiltTotal.Add(float64(runs))
	r.EnsembleBuildDuration.Observe(duration.Seconds())
}

// RecordBatchJob records one batch job; status is "written" or "skipped".
func (r *Registry) RecordBatchJob(mode, status string, duration time.Duration) {
	r.BatchJobsTotal.WithLabelValues(mode, status).Inc()
	r.BatchJobDuration.Observe(duration.Seconds())
}

// RecordExperimentSaved counts one experiment persisted to the store.
func (r *Registry) RecordExperimentSaved() {
	r.ExperimentsSavedTotal.Inc()
}

// ResetRunState clears per-run gauges, e.g. after a session is rebuilt.
func (r *Registry) ResetRunState() {
	r.StateCount.Reset()
	r.weekMu.Lock()
	r.maxWeek = 0
	r.CurrentWeek.Set(0)
	r.weekMu.Unlock()
}
