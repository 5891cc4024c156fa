// Package config provides unified configuration loading for prepsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/annebeks/prepsim/internal/constants"
	"github.com/annebeks/prepsim/internal/epidemic"
	"github.com/annebeks/prepsim/internal/export"
	"github.com/annebeks/prepsim/internal/network"
	"github.com/annebeks/prepsim/internal/pathutil"
	"github.com/annebeks/prepsim/internal/prep"
	"github.com/annebeks/prepsim/internal/simulation"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// validate is a singleton validator instance that reports yaml field names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Config contains all prepsim configuration settings.
type Config struct {
	// Network shapes the contact network.
	Network network.Config `json:"network" yaml:"network"`

	// Epidemic holds per-stage transmission, dwell times and PrEP efficacy.
	Epidemic epidemic.Params `json:"epidemic" yaml:"epidemic"`

	// Run configures a single ensemble.
	Run RunConfig `json:"run" yaml:"run"`

	// Batch configures exports over modes and PrEP levels.
	Batch BatchConfig `json:"batch" yaml:"batch"`

	// Session configures the play loop.
	Session SessionConfig `json:"session" yaml:"session"`

	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// RunConfig configures one ensemble of runs.
type RunConfig struct {
	Nodes       int     `json:"nodes" yaml:"nodes" validate:"min=1"`
	NetworkSeed uint64  `json:"network_seed" yaml:"network_seed"`
	Outbreak    float64 `json:"outbreak" yaml:"outbreak" validate:"gte=0,lte=1"`
	Iterations  int     `json:"iterations" yaml:"iterations" validate:"min=1"`
	MaxWeeks    int     `json:"max_weeks" yaml:"max_weeks" validate:"gte=0"`
	Mode        string  `json:"mode" yaml:"mode" validate:"required"`
	PrEP        float64 `json:"prep" yaml:"prep" validate:"gte=0,lte=1"`

	// UseSeed switches on reproducible interaction draws: run i gets Seed+i.
	// When false every run draws a fresh seed.
	UseSeed bool   `json:"use_seed" yaml:"use_seed"`
	Seed    uint64 `json:"seed" yaml:"seed"`

	// Workers bounds parallel runs; 0 means one per CPU.
	Workers int `json:"workers" yaml:"workers" validate:"gte=0"`
}

// BatchConfig configures a grid export.
type BatchConfig struct {
	Modes      []string  `json:"modes" yaml:"modes" validate:"min=1,dive,required"`
	PrEPLevels []float64 `json:"prep_levels" yaml:"prep_levels" validate:"min=1,dive,gte=0,lte=1"`
	Iterations int       `json:"iterations" yaml:"iterations" validate:"min=1"`
	OutputDir  string    `json:"output_dir" yaml:"output_dir" validate:"required"`
}

// SessionConfig configures the play loop.
type SessionConfig struct {
	StepsPerUpdate int           `json:"steps_per_update" yaml:"steps_per_update" validate:"min=1"`
	Delay          time.Duration `json:"delay" yaml:"delay" validate:"gte=0"`
}

// LoggingConfig configures prepsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the events.jsonl trace; "trace" adds every week.
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=error warn info debug trace"`

	// Format is "text" (default) or "json".
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=text json"`

	// Dir receives events.jsonl. Empty means ~/.prepsim/logs.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// StoreConfig configures the results database.
type StoreConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path of the SQLite file. Empty means ~/.prepsim/prepsim.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
}

// Default returns a Config with the interactive model's starting values.
func Default() *Config {
	return &Config{
		Network:  network.DefaultConfig(),
		Epidemic: epidemic.DefaultParams(),
		Run: RunConfig{
			Nodes:       constants.DefaultNodes,
			NetworkSeed: constants.DefaultNetworkSeed,
			Outbreak:    constants.DefaultOutbreakProportion,
			Iterations:  constants.DefaultIterations,
			MaxWeeks:    constants.DefaultMaxWeeks,
			Mode:        constants.DefaultMode,
			PrEP:        constants.DefaultPrEP,
			UseSeed:     false,
			Seed:        constants.DefaultInteractionSeed,
		},
		Batch: BatchConfig{
			Modes:      []string{constants.DefaultMode},
			PrEPLevels: export.DefaultPrEPLevels(),
			Iterations: constants.DefaultBatchIterations,
			OutputDir:  constants.DefaultOutputDir,
		},
		Session: SessionConfig{
			StepsPerUpdate: constants.DefaultStepsPerUpdate,
			Delay:          constants.DefaultDelayMillis * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Addr: constants.DefaultMetricsAddr,
		},
	}
}

// Load loads configuration and applies environment variable overrides.
// Order: defaults -> file -> environment. When path is empty the first of
// ./prepsim.yaml and ~/.prepsim/config.yaml that exists is used; a missing
// explicit path is an error.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		path = discover()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

func discover() string {
	candidates := []string{constants.ConfigFileName}
	if dir, err := pathutil.StateDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "config.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// LoadFromFile loads configuration from a specific YAML file. Fields the
// file omits keep their defaults; unknown fields are an error.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	dec := yaml.NewDecoder(strings.NewReader(expandEnvVars(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file %s: %w", pathutil.RedactPath(path), err)
	}

	return config, nil
}

// Validate checks struct constraints, then the network, epidemic and mode
// settings against the engine's own rules. All failures wrap
// ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, formatValidationError(err))
	}
	if err := c.Network.Validate(); err != nil {
		return fmt.Errorf("%w: network: %w", ErrInvalidConfig, err)
	}
	if err := c.Epidemic.Validate(); err != nil {
		return fmt.Errorf("%w: epidemic: %w", ErrInvalidConfig, err)
	}
	if _, err := prep.ParseMode(c.Run.Mode); err != nil {
		return fmt.Errorf("%w: run.mode: %w", ErrInvalidConfig, err)
	}
	for _, m := range c.Batch.Modes {
		if _, err := prep.ParseMode(m); err != nil {
			return fmt.Errorf("%w: batch.modes: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// formatValidationError turns the first validator failure into a
// yaml-path message such as "run.nodes: must be at least 1".
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	e := verrs[0]
	field := fieldPath(e.Namespace())
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s: field is required", field)
	case "min", "gte":
		return fmt.Errorf("%s: must be at least %s", field, e.Param())
	case "max", "lte":
		return fmt.Errorf("%s: must not exceed %s", field, e.Param())
	case "oneof":
		return fmt.Errorf("%s: must be one of %s", field, e.Param())
	case "hostname_port":
		return fmt.Errorf("%s: must be host:port", field)
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
	}
}

// fieldPath converts "Config.run.nodes" into "run.nodes".
func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return rest
}

// interactionSeed returns the base seed, or nil when seeding is off.
func (c *Config) interactionSeed() *uint64 {
	if !c.Run.UseSeed {
		return nil
	}
	s := c.Run.Seed
	return &s
}

// RunConfig returns the engine configuration for one run. The interaction
// seed is left for the ensemble to assign.
func (c *Config) RunConfig() simulation.RunConfig {
	return simulation.RunConfig{
		NumNodes:           c.Run.Nodes,
		TopologySeed:       c.Run.NetworkSeed,
		OutbreakProportion: c.Run.Outbreak,
		Mode:               c.Run.Mode,
		Coverage:           c.Run.PrEP,
		Network:            c.Network,
		Epidemic:           c.Epidemic,
	}
}

// EnsembleConfig returns the engine configuration for Run.Iterations runs.
func (c *Config) EnsembleConfig() simulation.EnsembleConfig {
	return simulation.EnsembleConfig{
		Runs:                c.Run.Iterations,
		BaseInteractionSeed: c.interactionSeed(),
		Workers:             c.Run.Workers,
		Run:                 c.RunConfig(),
	}
}

// SessionSettings returns play-loop settings built from Run and Session.
func (c *Config) SessionSettings() simulation.Settings {
	return simulation.Settings{
		Ensemble:       c.EnsembleConfig(),
		MaxWeeks:       c.Run.MaxWeeks,
		StepsPerUpdate: c.Session.StepsPerUpdate,
		Delay:          c.Session.Delay,
	}
}

// BatchConfig returns the export grid built from Run and Batch.
func (c *Config) BatchConfig() export.BatchConfig {
	ens := c.EnsembleConfig()
	ens.Runs = c.Batch.Iterations
	return export.BatchConfig{
		OutDir:     c.Batch.OutputDir,
		Modes:      c.Batch.Modes,
		PrEPLevels: c.Batch.PrEPLevels,
		MaxWeeks:   c.Run.MaxWeeks,
		Ensemble:   ens,
	}
}

// StorePath resolves the results database location.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	return pathutil.DefaultStorePath()
}

// LogDir resolves the events.jsonl directory.
func (c *Config) LogDir() (string, error) {
	if c.Logging.Dir != "" {
		return c.Logging.Dir, nil
	}
	return pathutil.DefaultLogDir()
}

// applyEnvOverrides applies PREPSIM_* environment overrides. Values that
// fail to parse are ignored.
func applyEnvOverrides(config *Config) {
	env := func(name string) string { return os.Getenv(constants.EnvPrefix + name) }

	if v := env("NODES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Run.Nodes = n
		}
	}
	if v := env("NETWORK_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Run.NetworkSeed = n
		}
	}
	if v := env("SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Run.Seed = n
			config.Run.UseSeed = true
		}
	}
	if v := env("ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Run.Iterations = n
		}
	}
	if v := env("MAX_WEEKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Run.MaxWeeks = n
		}
	}
	if v := env("MODE"); v != "" {
		config.Run.Mode = v
	}
	if v := env("PREP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Run.PrEP = f
		}
	}
	if v := env("OUTBREAK"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Run.Outbreak = f
		}
	}
	if v := env("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Run.Workers = n
		}
	}
	if v := env("LOG_LEVEL"); v != "" {
		config.Logging.Level = strings.ToLower(v)
	}
	if v := env("STORE"); v != "" {
		switch strings.ToLower(v) {
		case "off", "false", "0", "none":
			config.Store.Enabled = false
		default:
			config.Store.Enabled = true
			config.Store.Path = v
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
