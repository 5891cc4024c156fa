// Package network builds the static contact network a run simulates on.
//
// Build is a pure function of the node count, the topology seed and the
// network configuration: the same inputs always produce the same labelled
// graph and the same demographics, so a caller can reuse one layout across
// every run of an ensemble.
package network

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/randutil"
)

// ErrInvalidTopology is returned for a non-positive node count or an
// unusable network configuration.
var ErrInvalidTopology = errors.New("invalid topology")

// Network is an immutable contact graph with per-node demographics.
type Network struct {
	graph  *simple.UndirectedGraph
	people []models.Person
	adj    [][]int
	edges  int
	seed   uint64
	config Config
}

// Build generates a network of n nodes from seed.
func Build(n int, seed uint64, cfg Config) (*Network, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: node count must be positive, got %d", ErrInvalidTopology, n)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := randutil.New(seed)
	nw := &Network{
		graph:  simple.NewUndirectedGraph(),
		people: assignDemographics(n, cfg, r),
		adj:    make([][]int, n),
		seed:   seed,
		config: cfg,
	}
	for i := 0; i < n; i++ {
		nw.graph.AddNode(simple.Node(i))
	}

	var err error
	switch cfg.Topology {
	case TopologyErdosRenyi:
		err = nw.buildErdosRenyi(r)
	case TopologyBarabasiAlbert:
		err = nw.buildBarabasiAlbert(r)
	default:
		err = nw.buildPartnership(r)
	}
	if err != nil {
		return nil, err
	}

	for i := range nw.adj {
		slices.Sort(nw.adj[i])
	}
	return nw, nil
}

// assignDemographics draws sex then orientation for each node in id order.
func assignDemographics(n int, cfg Config, r *rand.Rand) []models.Person {
	weights := cfg.Orientations.values()
	total := weights[0] + weights[1] + weights[2]

	people := make([]models.Person, n)
	for i := range people {
		sex := models.Female
		if r.Float64() < cfg.MaleFraction {
			sex = models.Male
		}

		u := r.Float64() * total
		orientation := models.AllOrientations[models.NumOrientations-1]
		acc := 0.0
		for k, w := range weights {
			acc += w
			if u < acc {
				orientation = models.AllOrientations[k]
				break
			}
		}

		people[i] = models.Person{
			ID:          i,
			Sex:         sex,
			Orientation: orientation,
			State:       models.Susceptible,
		}
	}
	return people
}

// connect adds the partnership u-v unless it is a self loop or already exists.
func (nw *Network) connect(u, v int) bool {
	if u == v || nw.graph.HasEdgeBetween(int64(u), int64(v)) {
		return false
	}
	nw.graph.SetEdge(simple.Edge{F: simple.Node(u), T: simple.Node(v)})
	nw.adj[u] = append(nw.adj[u], v)
	nw.adj[v] = append(nw.adj[v], u)
	nw.edges++
	return true
}

// adopt replaces the network's graph with g, whose node ids must lie in
// [0, n), and derives the adjacency lists from it.
func (nw *Network) adopt(g *simple.UndirectedGraph) error {
	n := len(nw.people)
	for i := 0; i < n; i++ {
		if g.Node(int64(i)) == nil {
			g.AddNode(simple.Node(i))
		}
	}
	if got := g.Nodes().Len(); got != n {
		return fmt.Errorf("%w: generator produced %d nodes, want %d", ErrInvalidTopology, got, n)
	}

	nw.graph = g
	nw.adj = make([][]int, n)
	nw.edges = 0
	for u := 0; u < n; u++ {
		nbrs := g.From(int64(u))
		for nbrs.Next() {
			v := int(nbrs.Node().ID())
			nw.adj[u] = append(nw.adj[u], v)
			if u < v {
				nw.edges++
			}
		}
	}
	return nil
}

// Len returns the number of nodes.
func (nw *Network) Len() int { return len(nw.people) }

// NumEdges returns the number of partnerships.
func (nw *Network) NumEdges() int { return nw.edges }

// Seed returns the topology seed the network was built from.
func (nw *Network) Seed() uint64 { return nw.seed }

// Config returns the configuration the network was built with.
func (nw *Network) Config() Config { return nw.config }

// People returns a fresh copy of the demographic template. Every person is
// susceptible and uncovered; a run owns and mutates its copy.
func (nw *Network) People() []models.Person {
	return slices.Clone(nw.people)
}

// Neighbors returns the ascending partner ids of node id. The slice is shared
// and must not be modified.
func (nw *Network) Neighbors(id int) []int {
	return nw.adj[id]
}

// Adjacency returns the sorted adjacency lists for every node. Shared, read-only.
func (nw *Network) Adjacency() [][]int {
	return nw.adj
}

// Degree returns the number of partners of node id.
func (nw *Network) Degree(id int) int {
	return len(nw.adj[id])
}

// Graph exposes the underlying gonum graph for read-only analysis.
func (nw *Network) Graph() graph.Undirected {
	return nw.graph
}

// Edges returns every partnership once as (u, v) with u < v, sorted.
func (nw *Network) Edges() [][2]int {
	out := make([][2]int, 0, nw.edges)
	for u, nbrs := range nw.adj {
		for _, v := range nbrs {
			if u < v {
				out = append(out, [2]int{u, v})
			}
		}
	}
	return out
}
