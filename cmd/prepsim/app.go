package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/annebeks/prepsim/internal/config"
	"github.com/annebeks/prepsim/internal/epidemic"
	"github.com/annebeks/prepsim/internal/logging"
	"github.com/annebeks/prepsim/internal/metrics"
	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/network"
	"github.com/annebeks/prepsim/internal/sanitize"
	"github.com/annebeks/prepsim/internal/simulation"
	"github.com/annebeks/prepsim/internal/store"
	"github.com/spf13/cobra"
)

// app bundles what every simulation command needs once configuration has
// been loaded and validated.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	events *logging.EventLogger
}

// loadConfig loads configuration from --config (or the default locations)
// and applies the global --log-level flag. The result is not validated yet
// so commands can layer their own flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
	return cfg, nil
}

// newApp validates cfg and opens the logger and the event trace.
func newApp(cmd *cobra.Command, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr()),
	}
	if dir, err := cfg.LogDir(); err == nil {
		a.events = logging.NewEventLogger(dir, cfg.Logging.Level)
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		a.logger.Warn("closing event log", "error", err)
	}
}

// observer fans steps out to the debug logger, the event trace and reg.
// reg may be nil.
func (a *app) observer(reg *metrics.Registry) simulation.Observer {
	obs := simulation.Observers{simulation.LogObserver{Logger: a.logger}}
	if reg != nil {
		obs = append(obs, reg)
	}
	if a.events.Tracing() {
		obs = append(obs, simulation.ObserverFunc(func(run, week int, tr epidemic.Transitions, snap models.Snapshot) {
			a.events.Log("step", map[string]any{
				"run":         run + 1,
				"week":        week,
				"infections":  tr.Infections,
				"deaths":      tr.Deaths,
				"susceptible": snap.Susceptible,
				"infected":    snap.Infected(),
			})
		}))
	}
	return obs
}

// buildEnsemble constructs cfg's ensemble and records the build.
func (a *app) buildEnsemble(ctx context.Context, cfg simulation.EnsembleConfig, reg *metrics.Registry) (*simulation.Ensemble, error) {
	start := time.Now()
	ens, err := simulation.NewEnsemble(ctx, cfg)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if reg != nil {
		reg.RecordEnsembleBuilt(ens.Len(), elapsed)
	}
	a.logger.Debug("ensemble built", "runs", ens.Len(), "mode", cfg.Run.Mode, "prep", cfg.Run.Coverage, "elapsed", elapsed)
	for _, r := range ens.Runs() {
		seed, seeded := r.InteractionSeed()
		res := r.PrEP()
		a.events.Log("run_built", map[string]any{
			"run":              r.Index() + 1,
			"mode":             r.Mode(),
			"prep":             r.Coverage(),
			"interaction_seed": seed,
			"seeded":           seeded,
			"initial_infected": r.InitialInfected(),
			"eligible":         res.Eligible,
			"covered":          res.Covered,
		})
		if res.Empty() {
			a.logger.Warn("no eligible people for mode", "run", r.Index()+1, "mode", r.Mode())
		}
	}
	return ens, nil
}

// openStore opens the configured results database.
func (a *app) openStore(ctx context.Context) (*store.SQLiteStore, error) {
	path, err := a.cfg.StorePath()
	if err != nil {
		return nil, fmt.Errorf("resolving store path: %w", err)
	}
	st, err := store.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

// saveEnsemble persists ens as an experiment and returns its id.
func (a *app) saveEnsemble(ctx context.Context, st store.ExperimentStore, ens *simulation.Ensemble, label, csvPath string) (string, error) {
	exp, runs, series := store.FromEnsemble(store.Experiment{Label: sanitize.Label(label), CSVPath: csvPath}, ens)
	id, err := st.SaveExperiment(ctx, exp, runs, series)
	if err != nil {
		return "", fmt.Errorf("saving experiment: %w", err)
	}
	a.logger.Info("experiment saved", "id", id, "mode", exp.Mode, "prep", exp.PrEP, "runs", exp.Runs)
	return id, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// addModelFlags registers the flags shared by commands that build runs.
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().Int("nodes", 0, "Population size")
	cmd.Flags().Uint64("network-seed", 0, "Topology seed; fixes the network and demographics")
	cmd.Flags().Uint64("seed", 0, "Base interaction seed; run i uses seed+i (default: fresh seed per run)")
	cmd.Flags().Float64("outbreak", 0, "Initial outbreak proportion")
	cmd.Flags().Int("weeks", 0, "Week ceiling")
	cmd.Flags().Int("workers", 0, "Parallel runs (default one per CPU)")
	cmd.Flags().String("topology", "", "Network model: partnership, erdos_renyi, barabasi_albert")
}

// addEnsembleFlags registers the single-ensemble flags on top of the model flags.
func addEnsembleFlags(cmd *cobra.Command) {
	addModelFlags(cmd)
	cmd.Flags().Int("iterations", 0, "Runs in the ensemble")
	cmd.Flags().String("mode", "", "PrEP targeting mode, e.g. standard, targeted_f, targeted_m_homo")
	cmd.Flags().Float64("prep", 0, "PrEP coverage fraction within the eligible group")
}

// applyFlags copies every flag the user set onto cfg. Flags a command did
// not register are skipped.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("nodes") {
		cfg.Run.Nodes, _ = flags.GetInt("nodes")
	}
	if changed("network-seed") {
		cfg.Run.NetworkSeed, _ = flags.GetUint64("network-seed")
	}
	if changed("seed") {
		cfg.Run.Seed, _ = flags.GetUint64("seed")
		cfg.Run.UseSeed = true
	}
	if changed("outbreak") {
		cfg.Run.Outbreak, _ = flags.GetFloat64("outbreak")
	}
	if changed("weeks") {
		cfg.Run.MaxWeeks, _ = flags.GetInt("weeks")
	}
	if changed("workers") {
		cfg.Run.Workers, _ = flags.GetInt("workers")
	}
	if changed("topology") {
		topo, _ := flags.GetString("topology")
		cfg.Network.Topology = network.Topology(topo)
	}
	if changed("iterations") {
		cfg.Run.Iterations, _ = flags.GetInt("iterations")
	}
	if changed("mode") {
		cfg.Run.Mode, _ = flags.GetString("mode")
	}
	if changed("prep") {
		cfg.Run.PrEP, _ = flags.GetFloat64("prep")
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
