package network

import (
	"errors"
	"slices"
	"testing"

	"github.com/annebeks/prepsim/internal/models"
	"gonum.org/v1/gonum/graph"
)

func mustBuild(t *testing.T, n int, seed uint64, cfg Config) *Network {
	t.Helper()
	nw, err := Build(n, seed, cfg)
	if err != nil {
		t.Fatalf("Build(%d, %d): %v", n, seed, err)
	}
	return nw
}

func allTopologies() []Topology {
	return []Topology{TopologyPartnership, TopologyErdosRenyi, TopologyBarabasiAlbert}
}

func TestBuild_InvalidNodeCount(t *testing.T) {
	for _, n := range []int{0, -1, -100} {
		nw, err := Build(n, 1, DefaultConfig())
		if !errors.Is(err, ErrInvalidTopology) {
			t.Errorf("Build(%d) error = %v, want ErrInvalidTopology", n, err)
		}
		if nw != nil {
			t.Errorf("Build(%d) returned a network alongside the error", n)
		}
	}
}

func TestBuild_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown topology", func(c *Config) { c.Topology = "ring" }},
		{"negative degree", func(c *Config) { c.MeanDegree = -1 }},
		{"male fraction above one", func(c *Config) { c.MaleFraction = 1.2 }},
		{"negative weight", func(c *Config) { c.Orientations.Bisexual = -0.1 }},
		{"zero weights", func(c *Config) { c.Orientations = OrientationWeights{} }},
		{"zero window", func(c *Config) { c.MatchWindow = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := Build(10, 1, cfg); !errors.Is(err, ErrInvalidTopology) {
				t.Errorf("error = %v, want ErrInvalidTopology", err)
			}
		})
	}
}

func TestBuild_SingleNode(t *testing.T) {
	nw := mustBuild(t, 1, 5, DefaultConfig())
	if nw.Len() != 1 || nw.NumEdges() != 0 {
		t.Errorf("got %d nodes, %d edges", nw.Len(), nw.NumEdges())
	}
	s := nw.Summary()
	if s.Isolated != 1 || s.Components != 1 || s.DegreeStdDev != 0 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	for _, topo := range allTopologies() {
		t.Run(string(topo), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Topology = topo
			a := mustBuild(t, 300, 67, cfg)
			b := mustBuild(t, 300, 67, cfg)

			if !slices.Equal(a.Edges(), b.Edges()) {
				t.Error("same seed produced different edge sets")
			}
			if !slices.Equal(a.People(), b.People()) {
				t.Error("same seed produced different demographics")
			}

			c := mustBuild(t, 300, 68, cfg)
			if slices.Equal(a.Edges(), c.Edges()) {
				t.Error("different seeds produced identical edge sets")
			}
		})
	}
}

func TestBuild_NoSelfLoopsOrDuplicates(t *testing.T) {
	for _, topo := range allTopologies() {
		t.Run(string(topo), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Topology = topo
			nw := mustBuild(t, 500, 3, cfg)

			seen := make(map[[2]int]bool)
			for _, e := range nw.Edges() {
				if e[0] >= e[1] {
					t.Fatalf("edge %v not canonical", e)
				}
				if seen[e] {
					t.Fatalf("duplicate edge %v", e)
				}
				seen[e] = true
			}
			if len(seen) != nw.NumEdges() {
				t.Errorf("Edges() returned %d, NumEdges() = %d", len(seen), nw.NumEdges())
			}

			for id := 0; id < nw.Len(); id++ {
				nbrs := nw.Neighbors(id)
				if !slices.IsSorted(nbrs) {
					t.Fatalf("neighbors of %d not sorted", id)
				}
				if slices.Contains(nbrs, id) {
					t.Fatalf("self loop on %d", id)
				}
			}
		})
	}
}

func TestBuild_PartnershipRespectsOrientation(t *testing.T) {
	nw := mustBuild(t, 1000, 67, DefaultConfig())
	people := nw.People()
	if nw.NumEdges() == 0 {
		t.Fatal("expected some partnerships")
	}
	for _, e := range nw.Edges() {
		if !models.Compatible(people[e[0]], people[e[1]]) {
			t.Fatalf("incompatible partnership %v: %+v / %+v", e, people[e[0]], people[e[1]])
		}
	}
}

func TestBuild_MeanDegree(t *testing.T) {
	tests := []struct {
		topo     Topology
		lo, hi   float64
		meanDeg  float64
		numNodes int
	}{
		{TopologyErdosRenyi, 3.6, 4.4, 4, 1000},
		{TopologyBarabasiAlbert, 3.8, 4.1, 4, 1000},
		// Incompatible stubs are dropped, so the realised degree is lower.
		{TopologyPartnership, 2.5, 4.1, 4, 1000},
	}
	for _, tt := range tests {
		t.Run(string(tt.topo), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Topology = tt.topo
			cfg.MeanDegree = tt.meanDeg
			s := mustBuild(t, tt.numNodes, 9, cfg).Summary()
			if s.MeanDegree < tt.lo || s.MeanDegree > tt.hi {
				t.Errorf("mean degree = %.2f, want in [%.1f, %.1f]", s.MeanDegree, tt.lo, tt.hi)
			}
		})
	}
}

func TestBuild_ZeroDegree(t *testing.T) {
	for _, topo := range allTopologies() {
		cfg := DefaultConfig()
		cfg.Topology = topo
		cfg.MeanDegree = 0
		nw := mustBuild(t, 50, 1, cfg)
		if nw.NumEdges() != 0 {
			t.Errorf("%s: expected no edges, got %d", topo, nw.NumEdges())
		}
	}
}

func TestPeople_IsCopy(t *testing.T) {
	nw := mustBuild(t, 10, 1, DefaultConfig())
	p := nw.People()
	p[0].State = models.Dead
	p[0].PrEP = true
	if q := nw.People(); q[0].State != models.Susceptible || q[0].PrEP {
		t.Error("mutating People() leaked into the network template")
	}
}

func TestSummary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaleFraction = 1
	cfg.Orientations = OrientationWeights{Homosexual: 1}
	nw := mustBuild(t, 200, 4, cfg)
	s := nw.Summary()

	if s.Nodes != 200 || s.Males != 200 || s.Females != 0 {
		t.Errorf("demographics = %+v", s)
	}
	if s.Orientations["homosexual"] != 200 {
		t.Errorf("orientations = %v", s.Orientations)
	}
	if s.Edges != nw.NumEdges() {
		t.Errorf("Edges = %d, want %d", s.Edges, nw.NumEdges())
	}
	if s.LargestComponent < 1 || s.LargestComponent > s.Nodes {
		t.Errorf("largest component = %d", s.LargestComponent)
	}
	if s.Components < 1 {
		t.Errorf("components = %d", s.Components)
	}
	if g := nw.Graph(); g == nil {
		t.Error("Graph() returned nil")
	}
}

func TestBuild_GraphMatchesAdjacency(t *testing.T) {
	for _, topo := range allTopologies() {
		for _, n := range []int{1, 2, 3, 200} {
			cfg := DefaultConfig()
			cfg.Topology = topo
			nw := mustBuild(t, n, 21, cfg)

			g := nw.Graph()
			if got := g.Nodes().Len(); got != n {
				t.Fatalf("%s n=%d: graph has %d nodes", topo, n, got)
			}
			if got := g.(interface{ Edges() graph.Edges }).Edges().Len(); got != nw.NumEdges() {
				t.Errorf("%s n=%d: graph has %d edges, NumEdges() = %d", topo, n, got, nw.NumEdges())
			}
			for _, e := range nw.Edges() {
				if !g.HasEdgeBetween(int64(e[0]), int64(e[1])) {
					t.Fatalf("%s n=%d: edge %v missing from graph", topo, n, e)
				}
			}
		}
	}
}

func TestBuild_BarabasiAlbertEdgeCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Topology = TopologyBarabasiAlbert
	cfg.MeanDegree = 6

	// Every node after the first m attaches to m distinct earlier nodes.
	const n, m = 400, 3
	nw := mustBuild(t, n, 5, cfg)
	if got, want := nw.NumEdges(), (n-m)*m; got != want {
		t.Errorf("NumEdges() = %d, want %d", got, want)
	}
	for id := m; id < n; id++ {
		if nw.Degree(id) < m {
			t.Fatalf("node %d has degree %d, want at least %d", id, nw.Degree(id), m)
		}
	}
}

func TestBuild_ErdosRenyiDenseCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Topology = TopologyErdosRenyi
	cfg.MeanDegree = 50

	nw := mustBuild(t, 10, 1, cfg)
	if nw.NumEdges() != 45 {
		t.Errorf("p capped at 1 should give the complete graph, got %d edges", nw.NumEdges())
	}
}
