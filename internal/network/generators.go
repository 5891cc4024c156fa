package network

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/graph/graphs/gen"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/annebeks/prepsim/internal/models"
)

// buildPartnership runs a configuration-style model restricted to
// orientation-compatible pairs. Each node draws a desired degree from
// Poisson(MeanDegree); the stub list is shuffled and every stub is paired with
// the first later compatible stub inside the match window.
func (nw *Network) buildPartnership(r *rand.Rand) error {
	var stubs []int
	if nw.config.MeanDegree > 0 {
		degrees := distuv.Poisson{Lambda: nw.config.MeanDegree, Src: r}
		for i := range nw.people {
			d := int(degrees.Rand())
			for k := 0; k < d; k++ {
				stubs = append(stubs, i)
			}
		}
	}
	r.Shuffle(len(stubs), func(i, j int) {
		stubs[i], stubs[j] = stubs[j], stubs[i]
	})

	used := make([]bool, len(stubs))
	for a := range stubs {
		if used[a] {
			continue
		}
		used[a] = true
		u := stubs[a]
		limit := min(len(stubs), a+1+nw.config.MatchWindow)
		for b := a + 1; b < limit; b++ {
			if used[b] {
				continue
			}
			v := stubs[b]
			if !models.Compatible(nw.people[u], nw.people[v]) {
				continue
			}
			if nw.connect(u, v) {
				used[b] = true
				break
			}
		}
	}
	return nil
}

// buildErdosRenyi draws a G(n, p) graph with p = MeanDegree/(n-1), capped
// at 1.
func (nw *Network) buildErdosRenyi(r *rand.Rand) error {
	n := len(nw.people)
	g := simple.NewUndirectedGraph()
	if n > 1 {
		p := min(1, nw.config.MeanDegree/float64(n-1))
		if err := gen.Gnp(g, n, p, r); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTopology, err)
		}
	}
	return nw.adopt(g)
}

// buildBarabasiAlbert grows the graph one node at a time, attaching each new
// node to m = round(MeanDegree/2) distinct existing nodes chosen
// proportionally to degree.
func (nw *Network) buildBarabasiAlbert(r *rand.Rand) error {
	n := len(nw.people)
	g := simple.NewUndirectedGraph()
	m := min(n-1, int(math.Round(nw.config.MeanDegree/2)))
	if nw.config.MeanDegree > 0 && n > 1 {
		m = max(1, m)
	}
	if m > 0 {
		if err := gen.PreferentialAttachment(g, n, m, r); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTopology, err)
		}
	}
	return nw.adopt(g)
}
