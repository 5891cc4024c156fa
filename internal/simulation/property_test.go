package simulation

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/prep"
)

func conserved(series []models.Snapshot, n int) bool {
	for _, s := range series {
		if s.Total() != n {
			return false
		}
	}
	return true
}

func monotone(series []models.Snapshot) bool {
	for i := 1; i < len(series); i++ {
		if series[i].Susceptible > series[i-1].Susceptible || series[i].Dead < series[i-1].Dead {
			return false
		}
	}
	return true
}

// TestRunInvariants checks population conservation and monotone
// susceptible/dead counts across random seeds, modes and coverage.
func TestRunInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	modes := make([]interface{}, 0, len(prep.Modes()))
	for _, m := range prep.Modes() {
		modes = append(modes, m)
	}

	properties.Property("population is conserved and counts are monotone", prop.ForAll(
		func(topoSeed, seed uint64, mode string, coverage, outbreak float64) bool {
			cfg := testRunConfig(60, topoSeed, seed)
			cfg.Mode = mode
			cfg.Coverage = coverage
			cfg.OutbreakProportion = outbreak
			r, err := NewRun(cfg)
			if err != nil {
				return false
			}
			r.StepUntil(40)
			series := r.StatesPerTime()
			return len(series) == 41 && conserved(series, 60) && monotone(series)
		},
		gen.UInt64(),
		gen.UInt64(),
		gen.OneConstOf(modes...),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.Property("same seeds give the same trajectory", prop.ForAll(
		func(topoSeed, seed uint64) bool {
			a, errA := NewRun(testRunConfig(40, topoSeed, seed))
			b, errB := NewRun(testRunConfig(40, topoSeed, seed))
			if errA != nil || errB != nil {
				return false
			}
			a.StepUntil(30)
			b.StepUntil(30)
			sa, sb := a.StatesPerTime(), b.StatesPerTime()
			for i := range sa {
				if sa[i] != sb[i] {
					return false
				}
			}
			return true
		},
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
