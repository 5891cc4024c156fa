package constants

import "testing"

func TestDefaultsAreConsistent(t *testing.T) {
	if DefaultOutbreakProportion < 0 || DefaultOutbreakProportion > 1 {
		t.Errorf("DefaultOutbreakProportion = %v, want within [0, 1]", DefaultOutbreakProportion)
	}
	if DefaultPrEP < 0 || DefaultPrEP > 1 {
		t.Errorf("DefaultPrEP = %v, want within [0, 1]", DefaultPrEP)
	}
	if DefaultStepsPerUpdate > DefaultMaxWeeks {
		t.Errorf("DefaultStepsPerUpdate (%d) exceeds DefaultMaxWeeks (%d)", DefaultStepsPerUpdate, DefaultMaxWeeks)
	}
	if DefaultIterations < 1 || DefaultBatchIterations < 1 {
		t.Error("iteration defaults must be positive")
	}
}
