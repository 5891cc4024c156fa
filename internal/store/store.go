// Package store persists finished ensembles (experiments) and their weekly
// trajectories in SQLite so they can be listed, reloaded and compared later.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/annebeks/prepsim/internal/epidemic"
	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/network"
	"github.com/annebeks/prepsim/internal/simulation"
)

// ErrNotFound is returned when an experiment id does not exist.
var ErrNotFound = errors.New("experiment not found")

// Experiment describes one saved ensemble.
type Experiment struct {
	ID                 string    `json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	Label              string    `json:"label,omitempty"`
	Mode               string    `json:"mode"`
	PrEP               float64   `json:"prep"`
	Nodes              int       `json:"nodes"`
	NetworkSeed        uint64    `json:"network_seed"`
	OutbreakProportion float64   `json:"outbreak"`
	Runs               int       `json:"runs"`
	Weeks              int       `json:"weeks"`
	Topology           string    `json:"topology"`
	Params             Params    `json:"params"`
	CSVPath            string    `json:"csv_path,omitempty"`
}

// Params is the model configuration stored alongside an experiment.
type Params struct {
	Network  network.Config  `json:"network"`
	Epidemic epidemic.Params `json:"epidemic"`
}

// RunRecord is the per-run metadata of an experiment.
type RunRecord struct {
	Run             int    `json:"run"`
	InteractionSeed uint64 `json:"interaction_seed"`
	Seeded          bool   `json:"seeded"`
	InitialInfected int    `json:"initial_infected"`
	Eligible        int    `json:"eligible"`
	Covered         int    `json:"covered"`
}

// ListFilter narrows ListExperiments. Zero values match everything.
type ListFilter struct {
	Mode  string
	Limit int
}

// ExperimentStore saves and loads experiments.
type ExperimentStore interface {
	// SaveExperiment stores exp with its runs and trajectories and returns
	// the assigned id. series[i] belongs to runs[i].
	SaveExperiment(ctx context.Context, exp Experiment, runs []RunRecord, series [][]models.Snapshot) (string, error)

	// GetExperiment returns one experiment, or ErrNotFound.
	GetExperiment(ctx context.Context, id string) (*Experiment, error)

	// ListExperiments returns experiments, newest first.
	ListExperiments(ctx context.Context, filter ListFilter) ([]Experiment, error)

	// LoadRuns returns the run records of an experiment in run order.
	LoadRuns(ctx context.Context, id string) ([]RunRecord, error)

	// LoadSeries returns the weekly snapshots of every run in run order.
	LoadSeries(ctx context.Context, id string) ([][]models.Snapshot, error)

	// DeleteExperiment removes an experiment and everything under it.
	DeleteExperiment(ctx context.Context, id string) error

	Close() error
}

// FromEnsemble fills in every field of exp that the ensemble determines
// (everything but ID, CreatedAt, Label and CSVPath) from ens and returns the records and series to
// pass to SaveExperiment.
func FromEnsemble(exp Experiment, ens *simulation.Ensemble) (Experiment, []RunRecord, [][]models.Snapshot) {
	runs := ens.Runs()
	first := runs[0]

	exp.Runs = len(runs)
	exp.Weeks = ens.Time()
	exp.Mode = first.Mode()
	exp.PrEP = first.Coverage()
	exp.Nodes = first.Network().Len()
	exp.NetworkSeed = first.Network().Seed()
	exp.Topology = string(first.Network().Config().Topology)
	exp.OutbreakProportion = first.OutbreakProportion()
	exp.Params = Params{Network: first.Network().Config(), Epidemic: first.Params()}

	records := make([]RunRecord, len(runs))
	for i, r := range runs {
		seed, seeded := r.InteractionSeed()
		res := r.PrEP()
		records[i] = RunRecord{
			Run:             r.Index(),
			InteractionSeed: seed,
			Seeded:          seeded,
			InitialInfected: r.InitialInfected(),
			Eligible:        res.Eligible,
			Covered:         res.Covered,
		}
	}
	return exp, records, ens.Series()
}
