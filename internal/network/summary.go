package network

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/stat"

	"github.com/annebeks/prepsim/internal/models"
)

// Summary describes the structure and demographics of a network.
type Summary struct {
	Nodes            int            `json:"nodes"`
	Edges            int            `json:"edges"`
	MeanDegree       float64        `json:"mean_degree"`
	DegreeStdDev     float64        `json:"degree_stddev"`
	MaxDegree        int            `json:"max_degree"`
	Isolated         int            `json:"isolated"`
	Components       int            `json:"components"`
	LargestComponent int            `json:"largest_component"`
	Males            int            `json:"males"`
	Females          int            `json:"females"`
	Orientations     map[string]int `json:"orientations"`
}

// Summary computes degree statistics, connected components and demographic
// counts.
func (nw *Network) Summary() Summary {
	s := Summary{
		Nodes:        nw.Len(),
		Edges:        nw.edges,
		Orientations: make(map[string]int, models.NumOrientations),
	}

	degrees := make([]float64, nw.Len())
	for i, nbrs := range nw.adj {
		degrees[i] = float64(len(nbrs))
		if len(nbrs) == 0 {
			s.Isolated++
		}
	}
	s.MeanDegree, s.DegreeStdDev = stat.MeanStdDev(degrees, nil)
	if len(degrees) < 2 {
		s.DegreeStdDev = 0
	}
	s.MaxDegree = int(floats.Max(degrees))

	components := topo.ConnectedComponents(nw.graph)
	s.Components = len(components)
	for _, c := range components {
		s.LargestComponent = max(s.LargestComponent, len(c))
	}

	for _, p := range nw.people {
		if p.Sex == models.Male {
			s.Males++
		} else {
			s.Females++
		}
		s.Orientations[p.Orientation.String()]++
	}
	return s
}
