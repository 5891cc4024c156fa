package epidemic

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/annebeks/prepsim/internal/models"
)

// ErrInvalidStageParameters is returned when a probability lies outside
// [0, 1] or a dwell time is not a positive number of weeks.
var ErrInvalidStageParameters = errors.New("invalid stage parameters")

// DwellDistribution selects how stage durations are drawn.
type DwellDistribution string

const (
	// DwellExponential draws ceil(Exp(mean)) weeks, at least one.
	DwellExponential DwellDistribution = "exponential"
	// DwellFixed uses round(mean) weeks, at least one. Makes no draws.
	DwellFixed DwellDistribution = "fixed"
)

// StageValues holds one number per infectious stage.
type StageValues struct {
	Acute   float64 `json:"acute" yaml:"acute"`
	Chronic float64 `json:"chronic" yaml:"chronic"`
	AIDS    float64 `json:"aids" yaml:"aids"`
}

// For returns the value for an infectious stage, or 0 for any other state.
func (v StageValues) For(s models.State) float64 {
	switch s {
	case models.Acute:
		return v.Acute
	case models.Chronic:
		return v.Chronic
	case models.AIDS:
		return v.AIDS
	default:
		return 0
	}
}

// Params holds the tunable disease parameters. Time is in weeks.
type Params struct {
	// Transmission is the weekly probability that an infectious partner in
	// the given stage infects a susceptible partner. 0 disables the stage.
	// Default: acute 0.04, chronic 0.008, aids 0.05.
	Transmission StageValues `json:"transmission" yaml:"transmission"`

	// PrEPEfficacy is the relative reduction in susceptibility for covered
	// people. Default: 0.95.
	PrEPEfficacy float64 `json:"prep_efficacy" yaml:"prep_efficacy"`

	// Dwell is the mean number of weeks spent in each stage. Means must
	// increase from acute to chronic to aids.
	// Default: acute 12, chronic 416 (8 years), aids 520 (10 years).
	Dwell StageValues `json:"dwell" yaml:"dwell"`

	// DwellDistribution selects fixed or exponential dwell times.
	// Default: exponential.
	DwellDistribution DwellDistribution `json:"dwell_distribution" yaml:"dwell_distribution"`
}

// DefaultParams returns the default disease parameters.
func DefaultParams() Params {
	return Params{
		Transmission: StageValues{
			Acute:   0.04,
			Chronic: 0.008,
			AIDS:    0.05,
		},
		PrEPEfficacy: 0.95,
		Dwell: StageValues{
			Acute:   12,
			Chronic: 416,
			AIDS:    520,
		},
		DwellDistribution: DwellExponential,
	}
}

// Validate checks every probability and dwell time, and that dwell means
// are ordered by stage.
func (p Params) Validate() error {
	probs := []struct {
		name string
		v    float64
	}{
		{"transmission.acute", p.Transmission.Acute},
		{"transmission.chronic", p.Transmission.Chronic},
		{"transmission.aids", p.Transmission.AIDS},
		{"prep_efficacy", p.PrEPEfficacy},
	}
	for _, pr := range probs {
		if math.IsNaN(pr.v) || pr.v < 0 || pr.v > 1 {
			return fmt.Errorf("%w: %s must be between 0 and 1, got %v", ErrInvalidStageParameters, pr.name, pr.v)
		}
	}

	dwells := []struct {
		name string
		v    float64
	}{
		{"dwell.acute", p.Dwell.Acute},
		{"dwell.chronic", p.Dwell.Chronic},
		{"dwell.aids", p.Dwell.AIDS},
	}
	for _, d := range dwells {
		if math.IsNaN(d.v) || math.IsInf(d.v, 0) || d.v <= 0 {
			return fmt.Errorf("%w: %s must be a positive number of weeks, got %v", ErrInvalidStageParameters, d.name, d.v)
		}
	}

	if p.Dwell.Acute >= p.Dwell.Chronic || p.Dwell.Chronic >= p.Dwell.AIDS {
		return fmt.Errorf("%w: dwell means must increase acute < chronic < aids, got %v < %v < %v",
			ErrInvalidStageParameters, p.Dwell.Acute, p.Dwell.Chronic, p.Dwell.AIDS)
	}

	switch p.DwellDistribution {
	case DwellExponential, DwellFixed:
	default:
		return fmt.Errorf("%w: unknown dwell distribution %q", ErrInvalidStageParameters, p.DwellDistribution)
	}
	return nil
}

// SampleDwell draws the number of weeks a person entering state s stays
// there. States without a time-driven exit return 0 and make no draw.
func (p Params) SampleDwell(s models.State, r *rand.Rand) int {
	mean := p.Dwell.For(s)
	if mean <= 0 {
		return 0
	}
	if p.DwellDistribution == DwellFixed {
		return max(1, int(math.Round(mean)))
	}
	return max(1, int(math.Ceil(r.ExpFloat64()*mean)))
}

// InfectionProbability is the weekly chance that a partner in state source
// infects a susceptible person, reduced by PrEP when covered. Clamped to [0, 1].
func (p Params) InfectionProbability(source models.State, covered bool) float64 {
	prob := p.Transmission.For(source)
	if covered {
		prob *= 1 - p.PrEPEfficacy
	}
	return min(1, max(0, prob))
}
