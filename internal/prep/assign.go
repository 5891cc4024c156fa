package prep

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/randutil"
)

// ErrInvalidCoverage is returned for a coverage fraction outside [0, 1].
var ErrInvalidCoverage = errors.New("invalid coverage fraction")

// Result describes a completed assignment.
type Result struct {
	Eligible int `json:"eligible"`
	Covered  int `json:"covered"`
}

// Empty reports whether no one was eligible. This is not an error: the mode
// was valid but matched nobody in this population.
func (r Result) Empty() bool { return r.Eligible == 0 }

// Assign marks round(coverage * |eligible|) eligible people as covered,
// sampled uniformly without replacement from r. Coverage 0 and 1 make no
// draws. Existing flags are cleared first so the assignment reflects only
// this call.
func Assign(people []models.Person, target Target, coverage float64, r *rand.Rand) (Result, error) {
	if coverage < 0 || coverage > 1 || math.IsNaN(coverage) {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidCoverage, coverage)
	}

	eligible := make([]int, 0, len(people))
	for i := range people {
		people[i].PrEP = false
		if target.Matches(people[i]) {
			eligible = append(eligible, i)
		}
	}

	var chosen []int
	switch {
	case coverage == 0:
	case coverage == 1:
		chosen = eligible
	default:
		chosen = randutil.Sample(r, eligible, randutil.RoundCount(coverage, len(eligible)))
	}
	for _, i := range chosen {
		people[i].PrEP = true
	}

	return Result{Eligible: len(eligible), Covered: len(chosen)}, nil
}
