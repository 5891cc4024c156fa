package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/annebeks/prepsim/internal/metrics"
	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/ratelimit"
	"github.com/annebeks/prepsim/internal/simulation"
	"github.com/annebeks/prepsim/internal/stats"
	"github.com/annebeks/prepsim/internal/visualization"
	"github.com/spf13/cobra"
)

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play an ensemble week by week",
		Long: `Advance an ensemble in updates of --steps-per-update weeks with --delay
between updates, printing the median count of each state after every
update. Ctrl-C pauses at the next step boundary.

With --serve the session is not played automatically; instead an HTTP
server exposes it for step, play, pause and reset, together with the
network graph, weekly statistics and Prometheus metrics.

Examples:
  prepsim play --weeks 104 --steps-per-update 4 --delay 0
  prepsim play --serve localhost:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg)

			flags := cmd.Flags()
			if flags.Changed("steps-per-update") {
				cfg.Session.StepsPerUpdate, _ = flags.GetInt("steps-per-update")
			}
			if flags.Changed("delay") {
				cfg.Session.Delay, _ = flags.GetDuration("delay")
			}
			serveAddr, _ := flags.GetString("serve")
			rateLimit, _ := flags.GetFloat64("rate-limit")
			jsonOut, _ := flags.GetBool("json")

			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			reg := metrics.NewRegistry()
			settings := cfg.SessionSettings()
			settings.Ensemble.Run.Observer = a.observer(reg)

			start := time.Now()
			sess, err := simulation.NewSession(ctx, settings, a.logger)
			if err != nil {
				return fmt.Errorf("building session: %w", err)
			}
			reg.RecordEnsembleBuilt(sess.Ensemble().Len(), time.Since(start))

			if serveAddr != "" {
				return runSessionServer(cmd, ctx, sess, reg, a, serveAddr, rateLimit)
			}

			out := cmd.OutOrStdout()
			printUpdate := func(week int, ens *simulation.Ensemble) {
				if err := writeUpdate(out, week, ens, jsonOut); err != nil {
					a.logger.Warn("writing update", "error", err)
				}
			}
			printUpdate(sess.Week(), sess.Ensemble())

			err = sess.Play(ctx, printUpdate)
			if errors.Is(err, context.Canceled) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Paused at week %d\n", sess.Week())
				return nil
			}
			return err
		},
	}

	addEnsembleFlags(cmd)
	cmd.Flags().Int("steps-per-update", 0, "Weeks advanced per update (default session.steps_per_update)")
	cmd.Flags().Duration("delay", 0, "Pause between updates (default session.delay)")
	cmd.Flags().String("serve", "", "Serve the session over HTTP on this address instead of playing")
	cmd.Flags().Float64("rate-limit", 10, "Control requests per second per client when serving (0 disables)")

	return cmd
}

type playUpdate struct {
	Week   int                `json:"week"`
	Median map[string]float64 `json:"median"`
}

// writeUpdate prints the median of every state across runs at week.
func writeUpdate(w io.Writer, week int, ens *simulation.Ensemble, jsonOut bool) error {
	upd := playUpdate{Week: week, Median: make(map[string]float64, models.NumStates)}
	values := make([]float64, ens.Len())
	for _, st := range models.AllStates {
		for i, r := range ens.Runs() {
			values[i] = float64(r.Current().Get(st))
		}
		upd.Median[st.String()] = stats.Quantile(0.5, values)
	}

	if jsonOut {
		return encodeJSON(w, upd)
	}
	_, err := fmt.Fprintf(w, "week %4d  S %7.1f  A %7.1f  C %7.1f  AIDS %7.1f  D %7.1f\n",
		week,
		upd.Median[models.Susceptible.String()],
		upd.Median[models.Acute.String()],
		upd.Median[models.Chronic.String()],
		upd.Median[models.AIDS.String()],
		upd.Median[models.Dead.String()])
	return err
}

// runSessionServer serves sess over HTTP and blocks until ctx is cancelled.
func runSessionServer(cmd *cobra.Command, ctx context.Context, sess *simulation.Session, reg *metrics.Registry, a *app, addr string, rate float64) error {
	srv := visualization.NewServer(sess, reg.Handler(), a.logger)
	if rate > 0 {
		srv.LimitControls(ratelimit.NewLimiter(rate, max(1, int(2*rate))))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, addr) }()

	// Wait for server to start
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && srv.Addr() == "" {
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}

	listenAddr := srv.Addr()
	if listenAddr == "" {
		return fmt.Errorf("server failed to start")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Session server running at http://%s\n", listenAddr)
	fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

	// Block until server exits
	if err := <-errCh; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
