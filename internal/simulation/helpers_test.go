package simulation

import (
	"testing"

	"github.com/annebeks/prepsim/internal/epidemic"
	"github.com/annebeks/prepsim/internal/network"
)

func seedPtr(s uint64) *uint64 { return &s }

// testRunConfig returns a small seeded run configuration.
func testRunConfig(n int, topoSeed, seed uint64) RunConfig {
	return RunConfig{
		NumNodes:           n,
		TopologySeed:       topoSeed,
		InteractionSeed:    seedPtr(seed),
		OutbreakProportion: 0.1,
		Mode:               "standard",
		Coverage:           0.1,
		Network:            network.DefaultConfig(),
		Epidemic:           epidemic.DefaultParams(),
	}
}

func mustRun(t *testing.T, cfg RunConfig) *Run {
	t.Helper()
	r, err := NewRun(cfg)
	if err != nil {
		t.Fatalf("NewRun() error = %v", err)
	}
	return r
}
