package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/annebeks/prepsim/internal/export"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one ensemble to the week ceiling",
		Long: `Build an ensemble of runs over one network, advance every run to the
week ceiling and print the final-week distribution of each state.

The raw trajectories are written as CSV (one row per week, one column per
state and run) and, unless disabled, saved to the results database.

Examples:
  prepsim run                                  # defaults from config
  prepsim run --mode targeted_f --prep 0.5     # half of women on PrEP
  prepsim run --seed 42 --iterations 10        # reproducible ensemble
  prepsim run --no-csv --no-store --json       # print only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg)

			outDir, _ := cmd.Flags().GetString("out")
			noCSV, _ := cmd.Flags().GetBool("no-csv")
			noStore, _ := cmd.Flags().GetBool("no-store")
			label, _ := cmd.Flags().GetString("label")
			jsonOut, _ := cmd.Flags().GetBool("json")
			if outDir == "" {
				outDir = cfg.Batch.OutputDir
			}
			if noStore {
				cfg.Store.Enabled = false
			}

			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			ensCfg := cfg.EnsembleConfig()
			ensCfg.Run.Observer = a.observer(nil)
			ens, err := a.buildEnsemble(ctx, ensCfg, nil)
			if err != nil {
				return fmt.Errorf("building ensemble: %w", err)
			}

			start := time.Now()
			if err := ens.Advance(ctx, cfg.Run.MaxWeeks); err != nil {
				return fmt.Errorf("advancing ensemble: %w", err)
			}
			a.logger.Info("ensemble finished", "runs", ens.Len(), "weeks", ens.Time(), "elapsed", time.Since(start))

			series := ens.Series()
			rep, err := newEnsembleReport(cfg.Run.Mode, cfg.Run.PrEP, cfg.Run.Nodes, series)
			if err != nil {
				return err
			}
			rep.Seeds = ens.Seeds()

			if !noCSV {
				meta := export.Meta{
					Mode:        cfg.Run.Mode,
					PrEP:        cfg.Run.PrEP,
					Weeks:       cfg.Run.MaxWeeks,
					Nodes:       cfg.Run.Nodes,
					NetworkSeed: cfg.Run.NetworkSeed,
					Iterations:  ens.Len(),
					Time:        time.Now(),
				}
				path, err := export.WriteRawFile(filepath.Join(outDir, cfg.Run.Mode), meta, series)
				if err != nil {
					return fmt.Errorf("writing csv: %w", err)
				}
				rep.CSV = path
			}

			if cfg.Store.Enabled {
				st, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer st.Close()
				id, err := a.saveEnsemble(ctx, st, ens, label, rep.CSV)
				if err != nil {
					return err
				}
				rep.ID = id
			}

			return rep.write(cmd.OutOrStdout(), jsonOut)
		},
	}

	addEnsembleFlags(cmd)
	cmd.Flags().String("out", "", "CSV output directory (default batch.output_dir)")
	cmd.Flags().Bool("no-csv", false, "Do not write the raw CSV")
	cmd.Flags().Bool("no-store", false, "Do not save the experiment to the results database")
	cmd.Flags().String("label", "", "Label stored with the experiment")

	return cmd
}
