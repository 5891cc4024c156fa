package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/annebeks/prepsim/internal/export"
	"github.com/annebeks/prepsim/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse experiments saved by run and batch",
		Long: `List, inspect, re-export and delete experiments, and back up or restore
the database itself. Experiments live in the results database
(~/.prepsim/prepsim.db unless store.path or PREPSIM_STORE says otherwise).

Examples:
  prepsim history list --mode targeted_f --limit 5
  prepsim history show <id>
  prepsim history export <id> --out exported
  prepsim history delete <id>
  prepsim history backup --keep 5
  prepsim history restore ~/.prepsim/backups/prepsim-backup-<time>.db --force`,
	}

	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistoryExportCmd(),
		newHistoryDeleteCmd(),
		newHistoryBackupCmd(),
		newHistoryBackupsCmd(),
		newHistoryRestoreCmd(),
	)

	return cmd
}

// withStore loads configuration, opens the results database and calls fn.
func withStore(cmd *cobra.Command, fn func(a *app, st *store.SQLiteStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(a, st)
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved experiments, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := cmd.Flags().GetString("mode")
			limit, _ := cmd.Flags().GetInt("limit")
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(a *app, st *store.SQLiteStore) error {
				exps, err := st.ListExperiments(cmd.Context(), store.ListFilter{Mode: mode, Limit: limit})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					if exps == nil {
						exps = []store.Experiment{}
					}
					return encodeJSON(out, exps)
				}
				if len(exps) == 0 {
					fmt.Fprintln(out, "No experiments saved yet.")
					fmt.Fprintln(out, "\nUse 'prepsim run' to run and save an ensemble.")
					return nil
				}

				fmt.Fprintf(out, "%-36s  %-19s  %-20s %5s %6s %5s %6s  %s\n", "ID", "CREATED", "MODE", "PREP", "NODES", "RUNS", "WEEKS", "LABEL")
				for _, e := range exps {
					fmt.Fprintf(out, "%-36s  %-19s  %-20s %4.0f%% %6d %5d %6d  %s\n",
						e.ID, e.CreatedAt.Local().Format(time.DateTime), e.Mode, e.PrEP*100, e.Nodes, e.Runs, e.Weeks, e.Label)
				}
				return nil
			})
		},
	}

	cmd.Flags().String("mode", "", "Only experiments with this mode")
	cmd.Flags().Int("limit", 20, "Maximum number of experiments (0 for all)")

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an experiment's final-week summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(a *app, st *store.SQLiteStore) error {
				ctx := cmd.Context()
				exp, err := st.GetExperiment(ctx, args[0])
				if err != nil {
					return err
				}
				runs, err := st.LoadRuns(ctx, exp.ID)
				if err != nil {
					return err
				}
				series, err := st.LoadSeries(ctx, exp.ID)
				if err != nil {
					return err
				}

				rep, err := newEnsembleReport(exp.Mode, exp.PrEP, exp.Nodes, series)
				if err != nil {
					return err
				}
				rep.ID = exp.ID
				rep.CSV = exp.CSVPath
				for _, r := range runs {
					rep.Seeds = append(rep.Seeds, r.InteractionSeed)
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return encodeJSON(out, struct {
						Experiment *store.Experiment `json:"experiment"`
						Runs       []store.RunRecord `json:"runs"`
						Summary    ensembleReport    `json:"summary"`
					}{exp, runs, rep})
				}

				fmt.Fprintf(out, "Created: %s\n", exp.CreatedAt.Local().Format(time.DateTime))
				if exp.Label != "" {
					fmt.Fprintf(out, "Label:   %s\n", exp.Label)
				}
				fmt.Fprintf(out, "Network: %s, seed %d, outbreak %.2f\n", exp.Topology, exp.NetworkSeed, exp.OutbreakProportion)
				for _, r := range runs {
					fmt.Fprintf(out, "  run %d: seed %d, %d initially infected, %d/%d on PrEP\n",
						r.Run+1, r.InteractionSeed, r.InitialInfected, r.Covered, r.Eligible)
				}
				fmt.Fprintln(out)
				return rep.write(out, false)
			})
		},
	}
}

func newHistoryExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a saved experiment as a raw CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("out")

			return withStore(cmd, func(a *app, st *store.SQLiteStore) error {
				ctx := cmd.Context()
				exp, err := st.GetExperiment(ctx, args[0])
				if err != nil {
					return err
				}
				series, err := st.LoadSeries(ctx, exp.ID)
				if err != nil {
					return err
				}

				if outDir == "" {
					outDir = a.cfg.Batch.OutputDir
				}
				meta := export.Meta{
					Mode:        exp.Mode,
					PrEP:        exp.PrEP,
					Weeks:       exp.Weeks,
					Nodes:       exp.Nodes,
					NetworkSeed: exp.NetworkSeed,
					Iterations:  exp.Runs,
					Time:        exp.CreatedAt.Local(),
				}
				path, err := export.WriteRawFile(filepath.Join(outDir, exp.Mode), meta, series)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().String("out", "", "Output directory (default batch.output_dir)")

	return cmd
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(a *app, st *store.SQLiteStore) error {
				if err := st.DeleteExperiment(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.logger.Info("experiment deleted", "id", args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}
