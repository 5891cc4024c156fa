// Package constants provides named defaults used throughout prepsim.
// These mirror the interactive model's starting values so a fresh config
// reproduces its runs.
package constants

// Population and network defaults
const (
	// DefaultNodes is the population size.
	DefaultNodes = 1000

	// DefaultNetworkSeed fixes the contact network and demographics.
	DefaultNetworkSeed = 67

	// DefaultOutbreakProportion is the fraction of people seeded Acute at week 0.
	DefaultOutbreakProportion = 0.11
)

// Run defaults
const (
	// DefaultInteractionSeed is the base seed used when seeding is switched on.
	// Runs are unseeded unless the user asks for it.
	DefaultInteractionSeed = 42

	// DefaultIterations is the number of replicate runs in an ensemble.
	DefaultIterations = 3

	// DefaultMaxWeeks is the step ceiling (ten years).
	DefaultMaxWeeks = 520

	// DefaultMode is the PrEP targeting mode.
	DefaultMode = "standard"

	// DefaultPrEP is the PrEP coverage fraction within the eligible group.
	DefaultPrEP = 0.1
)

// Play-loop defaults
const (
	// DefaultStepsPerUpdate is how many weeks the play loop advances
	// between updates.
	DefaultStepsPerUpdate = 10

	// DefaultDelayMillis is the pause between play-loop updates.
	DefaultDelayMillis = 50
)

// Batch defaults
const (
	// DefaultBatchIterations is the ensemble size used for batch exports.
	DefaultBatchIterations = 50

	// DefaultOutputDir receives exported CSV files.
	DefaultOutputDir = "sim_results"
)

// Metrics
const (
	// DefaultMetricsAddr is where the Prometheus endpoint listens when
	// enabled without an explicit address.
	DefaultMetricsAddr = "localhost:9464"
)

// ConfigFileName is the project-local config file picked up by Load.
const ConfigFileName = "prepsim.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PREPSIM_"
