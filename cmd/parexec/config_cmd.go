package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/parexec/parexec/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := config.Export(cfg, "json")
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var flagExportFormat string

var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the effective configuration as JSON or YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := config.Export(cfg, flagExportFormat)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the global config file",
	Long: `Supported keys: max_parallel, default_turn_budget, default_timeout_sec,
on_dependency_failure, runner.command, runner.model, runner.system_prompt.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		globalPath, _, err := config.DefaultPaths()
		if err != nil {
			return err
		}

		// Edit the global file only, without project overrides baked in.
		cfg, err := config.Load(globalPath, "")
		if err != nil {
			return err
		}

		if err := setConfigKey(cfg, args[0], args[1]); err != nil {
			return err
		}
		cfg.Normalize()

		if err := config.Save(cfg, globalPath); err != nil {
			return err
		}
		fmt.Printf("Updated %s in %s\n", args[0], globalPath)
		return nil
	},
}

func setConfigKey(cfg *config.Config, key, value string) error {
	switch key {
	case "max_parallel":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		cfg.MaxParallel = n
	case "default_turn_budget":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		cfg.DefaultTurnBudget = n
	case "default_timeout_sec":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		cfg.DefaultTimeoutSec = n
	case "on_dependency_failure":
		cfg.OnDependencyFailure = value
	case "runner.command":
		cfg.Runner.Command = value
	case "runner.model":
		cfg.Runner.Model = value
	case "runner.system_prompt":
		cfg.Runner.SystemPrompt = value
	default:
		return fmt.Errorf("unknown configuration key %q", key)
	}
	return nil
}

func init() {
	configExportCmd.Flags().StringVar(&flagExportFormat, "format", "yaml", "export format: json or yaml")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configExportCmd)
	configCmd.AddCommand(configSetCmd)
}
