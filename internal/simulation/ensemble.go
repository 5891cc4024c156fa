package simulation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/annebeks/prepsim/internal/models"
)

// ErrInvalidEnsemble is returned for a non-positive number of runs.
var ErrInvalidEnsemble = errors.New("invalid ensemble size")

// EnsembleConfig describes K replicate runs on one topology.
type EnsembleConfig struct {
	// Runs is the number of replicates (K).
	Runs int

	// BaseInteractionSeed, when set, gives run i the seed base+i. When nil
	// every run draws a fresh seed.
	BaseInteractionSeed *uint64

	// Workers bounds the goroutines used to build and advance runs.
	// Zero means GOMAXPROCS.
	Workers int

	// Run is the template for every replicate. Its InteractionSeed and
	// Index are overwritten per run.
	Run RunConfig
}

func (c EnsembleConfig) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// seedFor returns the interaction seed for run i, or nil for a fresh one.
func (c EnsembleConfig) seedFor(i int) *uint64 {
	if c.BaseInteractionSeed == nil {
		return nil
	}
	s := *c.BaseInteractionSeed + uint64(i)
	return &s
}

// Ensemble is an ordered set of independent runs sharing one topology seed.
type Ensemble struct {
	runs    []*Run
	workers int
}

// NewEnsemble builds cfg.Runs runs in parallel. Each run builds its own
// network from the shared topology seed. If any run fails to build, no
// ensemble is returned.
func NewEnsemble(ctx context.Context, cfg EnsembleConfig) (*Ensemble, error) {
	if cfg.Runs < 1 {
		return nil, fmt.Errorf("%w: need at least one run, got %d", ErrInvalidEnsemble, cfg.Runs)
	}

	runs := make([]*Run, cfg.Runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())
	for i := range runs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rc := cfg.Run
			rc.Index = i
			rc.InteractionSeed = cfg.seedFor(i)
			run, err := NewRun(rc)
			if err != nil {
				return fmt.Errorf("run %d: %w", i+1, err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Ensemble{runs: runs, workers: cfg.workers()}, nil
}

// Len returns the number of runs.
func (e *Ensemble) Len() int { return len(e.runs) }

// Run returns run i.
func (e *Ensemble) Run(i int) *Run { return e.runs[i] }

// Runs returns the runs in order.
func (e *Ensemble) Runs() []*Run { return slices.Clone(e.runs) }

// Time returns the week reached by the slowest run.
func (e *Ensemble) Time() int {
	t := e.runs[0].Time()
	for _, r := range e.runs[1:] {
		t = min(t, r.Time())
	}
	return t
}

// Step advances every run by exactly one week, in parallel.
func (e *Ensemble) Step() {
	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, r := range e.runs {
		g.Go(func() error {
			r.Step()
			return nil
		})
	}
	_ = g.Wait()
}

// Advance steps every run until it reaches week weeks. Runs progress
// independently; ctx is checked between steps, so a cancelled advance
// leaves every run at a step boundary.
func (e *Ensemble) Advance(ctx context.Context, weeks int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, r := range e.runs {
		g.Go(func() error {
			for r.Time() < weeks {
				if err := gctx.Err(); err != nil {
					return err
				}
				r.Step()
			}
			return nil
		})
	}
	return g.Wait()
}

// Series returns every run's weekly snapshots, in run order.
func (e *Ensemble) Series() [][]models.Snapshot {
	out := make([][]models.Snapshot, len(e.runs))
	for i, r := range e.runs {
		out[i] = r.StatesPerTime()
	}
	return out
}

// Seeds returns the interaction seed of every run.
func (e *Ensemble) Seeds() []uint64 {
	out := make([]uint64, len(e.runs))
	for i, r := range e.runs {
		out[i], _ = r.InteractionSeed()
	}
	return out
}
