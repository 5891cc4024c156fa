package network

import (
	"fmt"
	"math"
)

// Topology names a random graph model.
type Topology string

const (
	TopologyPartnership    Topology = "partnership"     // Poisson degrees, orientation-compatible stub matching
	TopologyErdosRenyi     Topology = "erdos_renyi"     // G(n, p)
	TopologyBarabasiAlbert Topology = "barabasi_albert" // Preferential attachment
)

// OrientationWeights are the relative frequencies of each orientation.
// They need not sum to one.
type OrientationWeights struct {
	Heterosexual float64 `json:"heterosexual" yaml:"heterosexual"`
	Homosexual   float64 `json:"homosexual" yaml:"homosexual"`
	Bisexual     float64 `json:"bisexual" yaml:"bisexual"`
}

func (w OrientationWeights) values() [3]float64 {
	return [3]float64{w.Heterosexual, w.Homosexual, w.Bisexual}
}

// Config controls topology generation and demographic assignment.
type Config struct {
	// Topology selects the graph model. Default: partnership.
	Topology Topology `json:"topology" yaml:"topology"`

	// MeanDegree is the target average number of partners. Default: 4.
	MeanDegree float64 `json:"mean_degree" yaml:"mean_degree"`

	// MaleFraction is the probability a node is male. Default: 0.5.
	MaleFraction float64 `json:"male_fraction" yaml:"male_fraction"`

	// Orientations weights the categorical orientation draw.
	Orientations OrientationWeights `json:"orientations" yaml:"orientations"`

	// MatchWindow bounds how far ahead the partnership model searches for a
	// compatible stub. Default: 64.
	MatchWindow int `json:"match_window" yaml:"match_window"`
}

// DefaultConfig returns the default network configuration.
func DefaultConfig() Config {
	return Config{
		Topology:     TopologyPartnership,
		MeanDegree:   4,
		MaleFraction: 0.5,
		Orientations: OrientationWeights{
			Heterosexual: 0.85,
			Homosexual:   0.10,
			Bisexual:     0.05,
		},
		MatchWindow: 64,
	}
}

// Validate checks the configuration. All failures wrap ErrInvalidTopology.
func (c Config) Validate() error {
	switch c.Topology {
	case TopologyPartnership, TopologyErdosRenyi, TopologyBarabasiAlbert:
	default:
		return fmt.Errorf("%w: unknown topology %q", ErrInvalidTopology, c.Topology)
	}
	if c.MeanDegree < 0 || math.IsNaN(c.MeanDegree) || math.IsInf(c.MeanDegree, 0) {
		return fmt.Errorf("%w: mean_degree must be a non-negative number, got %v", ErrInvalidTopology, c.MeanDegree)
	}
	if c.MaleFraction < 0 || c.MaleFraction > 1 || math.IsNaN(c.MaleFraction) {
		return fmt.Errorf("%w: male_fraction must be between 0 and 1, got %v", ErrInvalidTopology, c.MaleFraction)
	}
	total := 0.0
	for _, w := range c.Orientations.values() {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%w: orientation weights must be non-negative", ErrInvalidTopology)
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("%w: orientation weights must sum to a positive value", ErrInvalidTopology)
	}
	if c.Topology == TopologyPartnership && c.MatchWindow < 1 {
		return fmt.Errorf("%w: match_window must be at least 1, got %d", ErrInvalidTopology, c.MatchWindow)
	}
	return nil
}
