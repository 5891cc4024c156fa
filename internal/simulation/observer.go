package simulation

import (
	"log/slog"

	"github.com/annebeks/prepsim/internal/epidemic"
	"github.com/annebeks/prepsim/internal/models"
)

// Observer is notified after every step of a run. Ensembles step runs
// concurrently, so implementations must be safe for concurrent use.
type Observer interface {
	ObserveStep(run, week int, tr epidemic.Transitions, snap models.Snapshot)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(run, week int, tr epidemic.Transitions, snap models.Snapshot)

// ObserveStep calls f.
func (f ObserverFunc) ObserveStep(run, week int, tr epidemic.Transitions, snap models.Snapshot) {
	f(run, week, tr, snap)
}

// Observers fans a step out to several observers in order.
type Observers []Observer

// ObserveStep notifies every non-nil observer.
func (obs Observers) ObserveStep(run, week int, tr epidemic.Transitions, snap models.Snapshot) {
	for _, o := range obs {
		if o != nil {
			o.ObserveStep(run, week, tr, snap)
		}
	}
}

// LogObserver logs every step that changed someone's state at debug level.
type LogObserver struct {
	Logger *slog.Logger
}

// ObserveStep implements Observer.
func (l LogObserver) ObserveStep(run, week int, tr epidemic.Transitions, snap models.Snapshot) {
	if l.Logger == nil || tr.Total() == 0 {
		return
	}
	l.Logger.Debug("step",
		"run", run,
		"week", week,
		"infections", tr.Infections,
		"deaths", tr.Deaths,
		"susceptible", snap.Susceptible,
		"infected", snap.Infected(),
	)
}
