package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parexec/parexec/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "parexec",
	Short: "parexec - parallel agent task executor",
	Long: `parexec runs interdependent agent tasks in dependency-ordered batches
with a global concurrency ceiling. Task sets come from JSON files or the
built-in exploration and feature-development templates.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	flagMaxParallel int
	flagOutput      string
	flagNoTUI       bool
	flagOnDepFail   string
	flagNoHistory   bool
)

func init() {
	rootCmd.PersistentFlags().IntVar(&flagMaxParallel, "max-parallel", 0, "maximum concurrent tasks (overrides config, capped at 10)")
	rootCmd.PersistentFlags().StringVar(&flagOutput, "output", "", "write the id -> result map to a JSON file")
	rootCmd.PersistentFlags().BoolVar(&flagNoTUI, "no-tui", false, "plain log output instead of the live progress view")
	rootCmd.PersistentFlags().StringVar(&flagOnDepFail, "on-dep-failure", "", `dependency-failure policy: "skip" or "run" (overrides config)`)
	rootCmd.PersistentFlags().BoolVar(&flagNoHistory, "no-history", false, "do not record this run in the history database")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(featureCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig merges config files and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, err
	}
	if flagMaxParallel > 0 {
		cfg.MaxParallel = flagMaxParallel
	}
	if flagOnDepFail != "" {
		cfg.OnDependencyFailure = flagOnDepFail
	}
	cfg.Normalize()
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
