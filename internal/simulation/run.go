package simulation

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/annebeks/prepsim/internal/epidemic"
	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/network"
	"github.com/annebeks/prepsim/internal/prep"
	"github.com/annebeks/prepsim/internal/randutil"
)

// ErrInvalidOutbreak is returned for an initial outbreak proportion outside [0, 1].
var ErrInvalidOutbreak = errors.New("invalid initial outbreak proportion")

// RunConfig describes everything needed to construct a run.
type RunConfig struct {
	// NumNodes is the population size.
	NumNodes int

	// TopologySeed fixes the network structure and demographics.
	TopologySeed uint64

	// InteractionSeed fixes every per-run draw (coverage, outbreak,
	// transmission, dwell times). Nil draws a fresh seed.
	InteractionSeed *uint64

	// OutbreakProportion is the fraction of nodes that start Acute.
	OutbreakProportion float64

	// Mode is the PrEP targeting mode, e.g. "standard" or "targeted_m_homo".
	Mode string

	// Coverage is the PrEP coverage fraction within the eligible group.
	Coverage float64

	Network  network.Config
	Epidemic epidemic.Params

	// Index identifies the run inside an ensemble. Reported to the observer.
	Index int

	// Observer, when non-nil, is notified after every step.
	Observer Observer
}

// Run is one stochastic trajectory over a fixed network.
type Run struct {
	index      int
	mode       string
	coverage   float64
	seed       uint64
	seeded     bool
	net        *network.Network
	people     []models.Person
	process    *epidemic.Process
	rng        *rand.Rand
	time       int
	series     []models.Snapshot
	prep       prep.Result
	outbreak   int
	proportion float64
	observer   Observer
	lastTrans  epidemic.Transitions
}

// NewRun validates cfg, builds the network, assigns PrEP coverage, seeds
// the outbreak and records the week-0 snapshot. On error no run is returned.
func NewRun(cfg RunConfig) (*Run, error) {
	process, err := epidemic.NewProcess(cfg.Epidemic)
	if err != nil {
		return nil, err
	}
	target, err := prep.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if cfg.OutbreakProportion < 0 || cfg.OutbreakProportion > 1 || math.IsNaN(cfg.OutbreakProportion) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutbreak, cfg.OutbreakProportion)
	}

	net, err := network.Build(cfg.NumNodes, cfg.TopologySeed, cfg.Network)
	if err != nil {
		return nil, err
	}

	seed, seeded := randutil.FreshSeed(), false
	if cfg.InteractionSeed != nil {
		seed, seeded = *cfg.InteractionSeed, true
	}
	rng := randutil.New(seed)

	people := net.People()
	prepResult, err := prep.Assign(people, target, cfg.Coverage, rng)
	if err != nil {
		return nil, err
	}

	all := make([]int, len(people))
	for i := range all {
		all[i] = i
	}
	initial := randutil.Sample(rng, all, randutil.RoundCount(cfg.OutbreakProportion, len(people)))
	for _, id := range initial {
		process.Enter(&people[id], models.Acute, rng)
	}

	r := &Run{
		index:      cfg.Index,
		mode:       cfg.Mode,
		coverage:   cfg.Coverage,
		seed:       seed,
		seeded:     seeded,
		net:        net,
		people:     people,
		process:    process,
		rng:        rng,
		prep:       prepResult,
		outbreak:   len(initial),
		proportion: cfg.OutbreakProportion,
		observer:   cfg.Observer,
	}
	r.series = append(r.series, models.Count(people))
	return r, nil
}

// Step advances the run by one week and appends one snapshot.
func (r *Run) Step() {
	tr := r.process.Step(r.people, r.net.Adjacency(), r.rng)
	r.time++
	snap := models.Count(r.people)
	r.series = append(r.series, snap)
	r.lastTrans = tr
	if r.observer != nil {
		r.observer.ObserveStep(r.index, r.time, tr, snap)
	}
}

// StepUntil steps until Time reaches ceiling. It is a no-op when the run is
// already there. Returns the number of steps taken.
func (r *Run) StepUntil(ceiling int) int {
	steps := 0
	for r.time < ceiling {
		r.Step()
		steps++
	}
	return steps
}

// Time returns the number of elapsed weeks.
func (r *Run) Time() int { return r.time }

// Index returns the position of the run inside its ensemble.
func (r *Run) Index() int { return r.index }

// Mode returns the targeting mode string the run was built with.
func (r *Run) Mode() string { return r.mode }

// Coverage returns the configured coverage fraction.
func (r *Run) Coverage() float64 { return r.coverage }

// InteractionSeed returns the seed of the interaction source and whether it
// was supplied by the caller (false means it was drawn fresh).
func (r *Run) InteractionSeed() (uint64, bool) { return r.seed, r.seeded }

// PrEP returns the outcome of the coverage assignment.
func (r *Run) PrEP() prep.Result { return r.prep }

// InitialInfected returns the number of people seeded Acute at week 0.
func (r *Run) InitialInfected() int { return r.outbreak }

// OutbreakProportion returns the configured initial outbreak fraction.
func (r *Run) OutbreakProportion() float64 { return r.proportion }

// Params returns the epidemic parameters the run was built with.
func (r *Run) Params() epidemic.Params { return r.process.Params() }

// Network returns the run's contact network. Read-only.
func (r *Run) Network() *network.Network { return r.net }

// LastTransitions returns the transition counts of the most recent step.
func (r *Run) LastTransitions() epidemic.Transitions { return r.lastTrans }

// StatesPerTime returns a copy of the weekly snapshots, week 0 first.
func (r *Run) StatesPerTime() []models.Snapshot {
	return slices.Clone(r.series)
}

// Current returns the latest snapshot.
func (r *Run) Current() models.Snapshot {
	return r.series[len(r.series)-1]
}

// States returns a copy of every person's current state, indexed by id.
func (r *Run) States() []models.State {
	out := make([]models.State, len(r.people))
	for i := range r.people {
		out[i] = r.people[i].State
	}
	return out
}

// Person returns a copy of person id.
func (r *Run) Person(id int) models.Person {
	return r.people[id]
}

// People returns a copy of the full population.
func (r *Run) People() []models.Person {
	return slices.Clone(r.people)
}
