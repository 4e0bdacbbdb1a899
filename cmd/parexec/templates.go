package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parexec/parexec/internal/taskset"
)

var (
	flagExplorePath  string
	flagExploreTasks int
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Explore a codebase with parallel analysis tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		path := flagExplorePath
		if path == "" {
			path, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
		}

		tasks := taskset.Exploration(path, flagExploreTasks)
		fmt.Printf("Exploring %s with %d tasks (max %d parallel)\n", path, len(tasks), cfg.MaxParallel)
		return executeTasks(cmd.Context(), cfg, tasks)
	},
}

var featureCmd = &cobra.Command{
	Use:   "feature <description>",
	Short: "Develop a feature with a design/implement/test/docs pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		tasks := taskset.FeatureDevelopment(args[0])
		fmt.Printf("Developing feature with %d tasks (max %d parallel)\n", len(tasks), cfg.MaxParallel)
		return executeTasks(cmd.Context(), cfg, tasks)
	},
}

func init() {
	exploreCmd.Flags().StringVar(&flagExplorePath, "path", "", "path to explore (default: current directory)")
	exploreCmd.Flags().IntVar(&flagExploreTasks, "tasks", 4, "number of exploration tasks")
}
