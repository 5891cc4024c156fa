package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "prepsim",
		Short: "HIV epidemic simulation with PrEP targeting",
		Long: `prepsim simulates HIV spread over a sexual contact network and
compares PrEP (pre-exposure prophylaxis) targeting strategies.

Each run fixes the network with a topology seed and draws everything
else (coverage, outbreak, transmission) from its own interaction seed,
so ensembles vary the epidemic while holding the population constant.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./prepsim.yaml or ~/.prepsim/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: error, warn, info, debug, trace")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newBatchCmd(),
		newCompareCmd(),
		newPlayCmd(),
		newGraphCmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)

	return rootCmd
}
