package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/annebeks/prepsim/internal/logging"
	"github.com/annebeks/prepsim/internal/simulation"
)

// ErrNoJobs is returned when a batch has no modes or no PrEP levels.
var ErrNoJobs = errors.New("batch has no jobs")

// DefaultPrEPLevels returns 0.1, 0.2, ..., 1.0.
func DefaultPrEPLevels() []float64 {
	out := make([]float64, 10)
	for i := range out {
		out[i] = float64(i+1) / 10
	}
	return out
}

// Job is one (mode, coverage) combination.
type Job struct {
	Mode string  `json:"mode"`
	PrEP float64 `json:"prep"`
}

// JobResult records the outcome of one job. Path is empty and Err set when
// the job was skipped.
type JobResult struct {
	Job
	Path    string        `json:"path,omitempty"`
	Err     error         `json:"-"`
	Elapsed time.Duration `json:"elapsed"`
}

// Skipped reports whether the job failed.
func (r JobResult) Skipped() bool { return r.Err != nil }

// Report summarises a batch.
type Report struct {
	Results []JobResult
}

// Written returns the number of files produced.
func (r Report) Written() int {
	n := 0
	for _, res := range r.Results {
		if !res.Skipped() {
			n++
		}
	}
	return n
}

// Skipped returns the jobs that failed.
func (r Report) Skipped() []JobResult {
	var out []JobResult
	for _, res := range r.Results {
		if res.Skipped() {
			out = append(out, res)
		}
	}
	return out
}

// BatchConfig describes a grid of ensembles to run and export.
type BatchConfig struct {
	// OutDir receives one subdirectory per mode.
	OutDir string

	Modes      []string
	PrEPLevels []float64

	// MaxWeeks is how far every ensemble is advanced.
	MaxWeeks int

	// Ensemble is the template; Mode and Coverage are set per job.
	Ensemble simulation.EnsembleConfig
}

// Jobs expands the grid, modes outermost.
func (c BatchConfig) Jobs() []Job {
	jobs := make([]Job, 0, len(c.Modes)*len(c.PrEPLevels))
	for _, mode := range c.Modes {
		for _, p := range c.PrEPLevels {
			jobs = append(jobs, Job{Mode: mode, PrEP: p})
		}
	}
	return jobs
}

// Batch runs every job of a BatchConfig in turn. A job that fails to build
// or write is logged and skipped; the batch continues.
type Batch struct {
	Config BatchConfig
	Logger *slog.Logger
	Events *logging.EventLogger

	// OnJob, when set, is called after each job, including skipped ones.
	// ens is nil when the job failed before its ensemble finished. The batch
	// drops ens once OnJob returns, so callers that need it later must keep
	// what they need themselves.
	OnJob func(res JobResult, ens *simulation.Ensemble)

	// Now stamps file names. Defaults to time.Now.
	Now func() time.Time
}

// Run executes the batch. It returns early with ctx.Err() if ctx is
// cancelled; the report then covers the jobs finished so far.
func (b *Batch) Run(ctx context.Context) (Report, error) {
	jobs := b.Config.Jobs()
	if len(jobs) == 0 {
		return Report{}, ErrNoJobs
	}
	logger := b.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	var report Report
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		start := time.Now()
		path, ens, err := b.runJob(ctx, job)
		if err != nil && ctx.Err() != nil {
			return report, ctx.Err()
		}
		res := JobResult{Job: job, Path: path, Err: err, Elapsed: time.Since(start)}
		report.Results = append(report.Results, res)

		if err != nil {
			logger.Warn("batch job skipped", "mode", job.Mode, "prep", job.PrEP, "error", err)
		} else {
			logger.Info("batch job written", "job", i+1, "of", len(jobs), "mode", job.Mode, "prep", job.PrEP, "elapsed", res.Elapsed)
		}
		fields := map[string]any{
			"mode":       job.Mode,
			"prep":       job.PrEP,
			"path":       path,
			"elapsed_ms": res.Elapsed.Milliseconds(),
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		b.Events.Log("batch_job", fields)

		if b.OnJob != nil {
			b.OnJob(res, ens)
		}
	}
	return report, nil
}

func (b *Batch) runJob(ctx context.Context, job Job) (string, *simulation.Ensemble, error) {
	cfg := b.Config.Ensemble
	cfg.Run.Mode = job.Mode
	cfg.Run.Coverage = job.PrEP

	ens, err := simulation.NewEnsemble(ctx, cfg)
	if err != nil {
		return "", nil, fmt.Errorf("building ensemble: %w", err)
	}
	if err := ens.Advance(ctx, b.Config.MaxWeeks); err != nil {
		return "", nil, err
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	meta := Meta{
		Mode:        job.Mode,
		PrEP:        job.PrEP,
		Weeks:       b.Config.MaxWeeks,
		Nodes:       cfg.Run.NumNodes,
		NetworkSeed: cfg.Run.TopologySeed,
		Iterations:  cfg.Runs,
		Time:        now(),
	}
	path, err := WriteRawFile(filepath.Join(b.Config.OutDir, job.Mode), meta, ens.Series())
	if err != nil {
		return "", ens, err
	}
	return path, ens, nil
}
