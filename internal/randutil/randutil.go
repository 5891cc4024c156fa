// Package randutil holds the seeded random sources and the few sampling
// helpers the simulator needs. Every stochastic component receives its own
// *rand.Rand; nothing in the module touches a shared generator except
// FreshSeed.
package randutil

import (
	"math"
	"math/rand/v2"
	"slices"
)

// pcgStream distinguishes the second PCG word from the seed so that
// seed 0 still yields a well-mixed stream.
const pcgStream = 0x9e3779b97f4a7c15

// New returns a deterministic generator for seed.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^pcgStream))
}

// FreshSeed draws a seed from the runtime-seeded global source. Used when a
// caller asks for a non-reproducible run; the drawn seed is still recorded
// so the trajectory can be replayed.
func FreshSeed() uint64 {
	return rand.Uint64()
}

// Bernoulli returns true with probability p. p is clamped to [0,1]. A draw
// is always consumed so the stream position does not depend on p.
func Bernoulli(r *rand.Rand, p float64) bool {
	u := r.Float64()
	switch {
	case p <= 0 || math.IsNaN(p):
		return false
	case p >= 1:
		return true
	default:
		return u < p
	}
}

// Sample picks k distinct elements of ids uniformly at random using a
// partial Fisher-Yates shuffle over a copy. The result is sorted ascending.
// k is clamped to [0, len(ids)]; when k == len(ids) no draws are made.
func Sample(r *rand.Rand, ids []int, k int) []int {
	if k <= 0 {
		return []int{}
	}
	if k >= len(ids) {
		out := slices.Clone(ids)
		slices.Sort(out)
		return out
	}
	pool := slices.Clone(ids)
	for i := 0; i < k; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	out := pool[:k]
	slices.Sort(out)
	return out
}

// RoundCount returns round(fraction * n), rounding half away from zero and
// clamping to [0, n].
func RoundCount(fraction float64, n int) int {
	k := int(math.Round(fraction * float64(n)))
	if k < 0 {
		return 0
	}
	if k > n {
		return n
	}
	return k
}
