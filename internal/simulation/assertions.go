package simulation

import (
	"testing"

	"github.com/annebeks/prepsim/internal/models"
)

// AssertPopulationConserved asserts that every snapshot sums to n.
func AssertPopulationConserved(t *testing.T, series []models.Snapshot, n int) {
	t.Helper()
	for week, s := range series {
		if s.Total() != n {
			t.Errorf("AssertPopulationConserved: week %d: total %d, want %d (%+v)", week, s.Total(), n, s)
		}
	}
}

// AssertSusceptibleNonIncreasing asserts that the susceptible count never
// grows. Nobody recovers, so it can only fall.
func AssertSusceptibleNonIncreasing(t *testing.T, series []models.Snapshot) {
	t.Helper()
	for week := 1; week < len(series); week++ {
		if series[week].Susceptible > series[week-1].Susceptible {
			t.Errorf("AssertSusceptibleNonIncreasing: week %d: susceptible rose %d -> %d",
				week, series[week-1].Susceptible, series[week].Susceptible)
		}
	}
}

// AssertDeadNonDecreasing asserts that the dead count never shrinks.
func AssertDeadNonDecreasing(t *testing.T, series []models.Snapshot) {
	t.Helper()
	for week := 1; week < len(series); week++ {
		if series[week].Dead < series[week-1].Dead {
			t.Errorf("AssertDeadNonDecreasing: week %d: dead fell %d -> %d",
				week, series[week-1].Dead, series[week].Dead)
		}
	}
}

// AssertSeriesLength asserts that a run stepped to week has week+1 snapshots.
func AssertSeriesLength(t *testing.T, series []models.Snapshot, week int) {
	t.Helper()
	if len(series) != week+1 {
		t.Errorf("AssertSeriesLength: got %d snapshots, want %d", len(series), week+1)
	}
}

// AssertSeriesEqual asserts that two trajectories are identical week by week.
func AssertSeriesEqual(t *testing.T, got, want []models.Snapshot) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("AssertSeriesEqual: length %d, want %d", len(got), len(want))
	}
	for week := range got {
		if got[week] != want[week] {
			t.Errorf("AssertSeriesEqual: week %d: %+v, want %+v", week, got[week], want[week])
		}
	}
}

// AssertValidTrajectory runs the structural checks every trajectory of an
// n-person run must pass.
func AssertValidTrajectory(t *testing.T, series []models.Snapshot, n int) {
	t.Helper()
	AssertPopulationConserved(t, series, n)
	AssertSusceptibleNonIncreasing(t, series)
	AssertDeadNonDecreasing(t, series)
}
