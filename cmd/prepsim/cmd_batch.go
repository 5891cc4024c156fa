package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/annebeks/prepsim/internal/export"
	"github.com/annebeks/prepsim/internal/metrics"
	"github.com/annebeks/prepsim/internal/simulation"
	"github.com/annebeks/prepsim/internal/store"
	"github.com/spf13/cobra"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Export raw CSVs for every mode and PrEP level",
		Long: `Run one ensemble per (mode, PrEP level) pair and write each as a raw CSV
under <out>/<mode>/. A job that fails is logged and skipped; the batch
continues and the skipped jobs are listed at the end.

Examples:
  prepsim batch --modes standard,targeted_f --iterations 50
  prepsim batch --prep-levels 0.1,0.5,0.9 --weeks 260
  prepsim batch --metrics-addr localhost:9464   # expose Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg)

			flags := cmd.Flags()
			if flags.Changed("modes") {
				cfg.Batch.Modes, _ = flags.GetStringSlice("modes")
			}
			if flags.Changed("prep-levels") {
				cfg.Batch.PrEPLevels, _ = flags.GetFloat64Slice("prep-levels")
			}
			if flags.Changed("iterations") {
				cfg.Batch.Iterations, _ = flags.GetInt("iterations")
			}
			if flags.Changed("out") {
				cfg.Batch.OutputDir, _ = flags.GetString("out")
			}
			if flags.Changed("metrics-addr") {
				cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
				cfg.Metrics.Enabled = cfg.Metrics.Addr != ""
			}
			save, _ := flags.GetBool("save")
			jsonOut, _ := flags.GetBool("json")

			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			reg := metrics.NewRegistry()
			if cfg.Metrics.Enabled {
				stop, err := serveMetrics(ctx, cfg.Metrics.Addr, reg.Handler())
				if err != nil {
					return err
				}
				defer stop()
				fmt.Fprintf(cmd.ErrOrStderr(), "Metrics at http://%s/metrics\n", cfg.Metrics.Addr)
			}

			var st store.ExperimentStore
			if save && cfg.Store.Enabled {
				sqlStore, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer sqlStore.Close()
				st = sqlStore
			}

			batchCfg := cfg.BatchConfig()
			batchCfg.Ensemble.Run.Observer = a.observer(reg)

			batch := &export.Batch{
				Config: batchCfg,
				Logger: a.logger,
				Events: a.events,
				OnJob: func(res export.JobResult, ens *simulation.Ensemble) {
					status := "written"
					if res.Skipped() {
						status = "skipped"
					}
					reg.RecordBatchJob(res.Job.Mode, status, res.Elapsed)
					reg.ResetRunState()

					if st == nil || res.Skipped() || ens == nil {
						return
					}
					if _, err := a.saveEnsemble(ctx, st, ens, "batch", res.Path); err != nil {
						a.logger.Warn("batch job not saved", "mode", res.Job.Mode, "prep", res.Job.PrEP, "error", err)
						return
					}
					reg.RecordExperimentSaved()
				},
			}

			start := time.Now()
			report, err := batch.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("batch: %w", err)
			}

			if werr := writeBatchReport(cmd, report, time.Since(start), jsonOut); werr != nil {
				return werr
			}
			if err != nil {
				return fmt.Errorf("batch interrupted after %d jobs: %w", len(report.Results), err)
			}
			return nil
		},
	}

	addModelFlags(cmd)
	cmd.Flags().StringSlice("modes", nil, "Targeting modes (default batch.modes)")
	cmd.Flags().Float64Slice("prep-levels", nil, "PrEP coverage levels (default 0.1..1.0)")
	cmd.Flags().Int("iterations", 0, "Runs per job (default batch.iterations)")
	cmd.Flags().String("out", "", "Output directory (default batch.output_dir)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().Bool("save", false, "Also save every written job to the results database")

	return cmd
}

type batchSummary struct {
	Written int          `json:"written"`
	Skipped []skippedJob `json:"skipped"`
	Files   []string     `json:"files"`
	Elapsed string       `json:"elapsed"`
}

type skippedJob struct {
	Mode   string  `json:"mode"`
	PrEP   float64 `json:"prep"`
	Reason string  `json:"reason"`
}

func writeBatchReport(cmd *cobra.Command, report export.Report, elapsed time.Duration, jsonOut bool) error {
	summary := batchSummary{
		Written: report.Written(),
		Skipped: []skippedJob{},
		Files:   []string{},
		Elapsed: elapsed.Round(time.Millisecond).String(),
	}
	for _, res := range report.Results {
		if !res.Skipped() {
			summary.Files = append(summary.Files, res.Path)
		}
	}
	for _, res := range report.Skipped() {
		summary.Skipped = append(summary.Skipped, skippedJob{Mode: res.Job.Mode, PrEP: res.Job.PrEP, Reason: res.Err.Error()})
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return encodeJSON(out, summary)
	}

	fmt.Fprintf(out, "Wrote %d file(s) in %s\n", summary.Written, summary.Elapsed)
	for _, f := range summary.Files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	if len(summary.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped %d job(s):\n", len(summary.Skipped))
		for _, s := range summary.Skipped {
			fmt.Fprintf(out, "  %s prep=%.2f: %s\n", s.Mode, s.PrEP, s.Reason)
		}
	}
	return nil
}

// serveMetrics serves h at /metrics on addr until ctx ends or stop is
// called.
func serveMetrics(ctx context.Context, addr string, h http.Handler) (stop func(), err error) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	go srv.Serve(ln)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	return func() { close(done) }, nil
}
