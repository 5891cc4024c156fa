// Package visualization renders contact networks coloured by infection
// state, and serves a running session over HTTP.
package visualization

import (
	"fmt"
	"strings"

	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/network"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat accepts "dot" or "json".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want dot or json)", s)
	}
}

// StateColors maps each state to its fill colour.
var StateColors = map[models.State]string{
	models.Susceptible: "lightgray",
	models.Acute:       "red",
	models.Chronic:     "orange",
	models.AIDS:        "purple",
	models.Dead:        "black",
}

// sexShapes distinguishes sexes in DOT output, keyed by Sex.Short.
var sexShapes = map[string]string{
	"m": "box",
	"f": "ellipse",
}

// Node is one person in a rendered graph.
type Node struct {
	ID          int    `json:"id"`
	Sex         string `json:"sex"`
	Orientation string `json:"orientation"`
	State       string `json:"state"`
	PrEP        bool   `json:"prep"`
	Degree      int    `json:"degree"`
	Color       string `json:"color"`
}

// Edge is an undirected contact, Source < Target.
type Edge struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// Graph is the JSON form of a network at one week.
type Graph struct {
	Week      int             `json:"week"`
	Nodes     []Node          `json:"nodes"`
	Edges     []Edge          `json:"edges"`
	NodeCount int             `json:"node_count"`
	EdgeCount int             `json:"edge_count"`
	Counts    map[string]int  `json:"counts"`
	Summary   network.Summary `json:"summary"`
}

// BuildGraph pairs the network with the people's current attributes.
// people must be indexed by id and match the network's size.
func BuildGraph(nw *network.Network, people []models.Person, week int) (Graph, error) {
	if len(people) != nw.Len() {
		return Graph{}, fmt.Errorf("have %d people for a network of %d nodes", len(people), nw.Len())
	}

	nodes := make([]Node, len(people))
	for i, p := range people {
		nodes[i] = Node{
			ID:          p.ID,
			Sex:         p.Sex.Short(),
			Orientation: p.Orientation.Short(),
			State:       p.State.String(),
			PrEP:        p.PrEP,
			Degree:      nw.Degree(i),
			Color:       StateColors[p.State],
		}
	}

	pairs := nw.Edges()
	edges := make([]Edge, len(pairs))
	for i, e := range pairs {
		edges[i] = Edge{Source: e[0], Target: e[1]}
	}

	return Graph{
		Week:      week,
		Nodes:     nodes,
		Edges:     edges,
		NodeCount: len(nodes),
		EdgeCount: len(edges),
		Counts:    models.Count(people).Map(),
		Summary:   nw.Summary(),
	}, nil
}

// RenderDOT produces a Graphviz DOT representation of g. Nodes on PrEP get
// a thick outline.
func RenderDOT(g Graph) string {
	var b strings.Builder
	b.WriteString("graph prepsim {\n")
	b.WriteString("  layout=sfdp;\n")
	b.WriteString("  overlap=false;\n")
	fmt.Fprintf(&b, "  label=\"week %d\";\n", g.Week)
	b.WriteString("  node [style=filled, fontname=\"Helvetica\", fontsize=8, width=0.2, height=0.2];\n\n")

	for _, n := range g.Nodes {
		shape := sexShapes[n.Sex]
		if shape == "" {
			shape = "ellipse"
		}
		fontColor := "black"
		if n.State == models.Dead.String() || n.State == models.AIDS.String() {
			fontColor = "white"
		}
		penwidth := 1
		if n.PrEP {
			penwidth = 3
		}
		fmt.Fprintf(&b, "  %d [label=\"%d\", shape=%s, fillcolor=%q, fontcolor=%s, penwidth=%d, tooltip=\"%s %s %s\"];\n",
			n.ID, n.ID, shape, n.Color, fontColor, penwidth, n.Sex, n.Orientation, n.State)
	}
	b.WriteString("\n")

	for _, e := range g.Edges {
		fmt.Fprintf(&b, "  %d -- %d;\n", e.Source, e.Target)
	}

	b.WriteString("}\n")
	return b.String()
}
