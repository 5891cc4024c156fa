package main

import (
	"fmt"
	"os"

	"github.com/annebeks/prepsim/internal/pathutil"
	"github.com/annebeks/prepsim/internal/simulation"
	"github.com/annebeks/prepsim/internal/visualization"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Dump the contact network coloured by state",
		Long: `Build one run, advance it to --week and output the network in DOT
(Graphviz) or JSON format. Nodes are coloured by disease state and PrEP
users are drawn with a thick outline.

Examples:
  prepsim graph --nodes 200 --week 52 | sfdp -Tsvg > network.svg
  prepsim graph --format json --output network.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg)

			formatName, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			week, _ := cmd.Flags().GetInt("week")

			format, err := visualization.ParseFormat(formatName)
			if err != nil {
				return err
			}
			if week < 0 {
				return fmt.Errorf("--week must not be negative, got %d", week)
			}

			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			runCfg := cfg.RunConfig()
			if cfg.Run.UseSeed {
				seed := cfg.Run.Seed
				runCfg.InteractionSeed = &seed
			}
			runCfg.Observer = a.observer(nil)

			run, err := simulation.NewRun(runCfg)
			if err != nil {
				return fmt.Errorf("building run: %w", err)
			}
			run.StepUntil(week)

			g, err := visualization.BuildGraph(run.Network(), run.People(), run.Time())
			if err != nil {
				return fmt.Errorf("building graph: %w", err)
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}

			switch format {
			case visualization.FormatJSON:
				if err := encodeJSON(w, g); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}
			default:
				if _, err := fmt.Fprint(w, visualization.RenderDOT(g)); err != nil {
					return fmt.Errorf("write DOT: %w", err)
				}
			}

			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Graph written to %s\n", pathutil.RedactPath(output))
			}
			return nil
		},
	}

	addModelFlags(cmd)
	cmd.Flags().String("mode", "", "PrEP targeting mode")
	cmd.Flags().Float64("prep", 0, "PrEP coverage fraction within the eligible group")
	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	cmd.Flags().Int("week", 0, "Advance the run this many weeks before dumping")

	return cmd
}
