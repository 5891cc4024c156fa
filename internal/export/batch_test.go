package export

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annebeks/prepsim/internal/epidemic"
	"github.com/annebeks/prepsim/internal/network"
	"github.com/annebeks/prepsim/internal/simulation"
)

func testBatchConfig(out string) BatchConfig {
	base := uint64(42)
	return BatchConfig{
		OutDir:     out,
		Modes:      []string{"standard", "targeted_m"},
		PrEPLevels: []float64{0.1, 0.5},
		MaxWeeks:   10,
		Ensemble: simulation.EnsembleConfig{
			Runs:                2,
			BaseInteractionSeed: &base,
			Workers:             2,
			Run: simulation.RunConfig{
				NumNodes:           50,
				TopologySeed:       67,
				OutbreakProportion: 0.11,
				Network:            network.DefaultConfig(),
				Epidemic:           epidemic.DefaultParams(),
			},
		},
	}
}

func TestDefaultPrEPLevels(t *testing.T) {
	levels := DefaultPrEPLevels()
	require.Len(t, levels, 10)
	assert.Equal(t, 0.1, levels[0])
	assert.Equal(t, 0.3, levels[2])
	assert.Equal(t, 1.0, levels[9])
}

func TestBatchConfig_Jobs(t *testing.T) {
	jobs := testBatchConfig("").Jobs()
	assert.Equal(t, []Job{
		{"standard", 0.1}, {"standard", 0.5},
		{"targeted_m", 0.1}, {"targeted_m", 0.5},
	}, jobs)
}

func TestBatch_Run(t *testing.T) {
	out := t.TempDir()
	var seen []Job
	b := &Batch{
		Config: testBatchConfig(out),
		Now:    func() time.Time { return stamp },
		OnJob: func(r JobResult, ens *simulation.Ensemble) {
			seen = append(seen, r.Job)
			require.NotNil(t, ens)
			assert.Equal(t, 10, ens.Time())
		},
	}
	report, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Written())
	assert.Empty(t, report.Skipped())
	assert.Len(t, seen, 4)

	for _, res := range report.Results {
		assert.Equal(t, filepath.Join(out, res.Mode), filepath.Dir(res.Path))

		table, err := ReadRawFile(res.Path)
		require.NoError(t, err)
		assert.Equal(t, res.Mode, table.Mode)
		assert.Equal(t, 2, table.Runs)
		assert.Equal(t, 11, table.Len())
		for _, run := range table.Series() {
			for _, snap := range run {
				assert.Equal(t, 50, snap.Total())
			}
		}
	}

	entries, err := os.ReadDir(filepath.Join(out, "targeted_m"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBatch_ReleasesEnsembles(t *testing.T) {
	var released atomic.Int32
	b := &Batch{
		Config: testBatchConfig(t.TempDir()),
		OnJob: func(_ JobResult, ens *simulation.Ensemble) {
			runtime.AddCleanup(ens, func(*atomic.Int32) { released.Add(1) }, &released)
		},
	}
	report, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, report.Written())

	deadline := time.Now().Add(5 * time.Second)
	for released.Load() < 4 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	assert.EqualValues(t, 4, released.Load(), "finished ensembles must not outlive their job")
	runtime.KeepAlive(report)
}

func TestBatch_SkipsFailingJob(t *testing.T) {
	cfg := testBatchConfig(t.TempDir())
	cfg.Modes = []string{"bogus", "standard"}
	cfg.PrEPLevels = []float64{0.2}

	report, err := (&Batch{Config: cfg}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Written())
	skipped := report.Skipped()
	require.Len(t, skipped, 1)
	assert.Equal(t, "bogus", skipped[0].Mode)
	assert.Error(t, skipped[0].Err)
}

func TestBatch_NoJobs(t *testing.T) {
	cfg := testBatchConfig(t.TempDir())
	cfg.Modes = nil
	_, err := (&Batch{Config: cfg}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoJobs)
}

func TestBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := (&Batch{Config: testBatchConfig(t.TempDir())}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
}
