package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/parexec/parexec/internal/persistence"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past runs, or one run's task results",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, err := historyPath(cfg)
		if err != nil {
			return err
		}

		store, err := persistence.NewSQLiteStore(cmd.Context(), path)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			return showRun(cmd, store, args[0])
		}
		return listRuns(cmd, store)
	},
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "maximum number of runs to list")
}

func listRuns(cmd *cobra.Command, store persistence.Store) error {
	runs, err := store.ListRuns(cmd.Context(), flagHistoryLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tOK\tFAILED\tSKIPPED\tTOTAL")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.1fs\t%d\t%d\t%d\t%d\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.FinishedAt.Sub(run.StartedAt).Seconds(),
			run.Succeeded, run.Failed, run.Skipped, run.Total)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, store persistence.Store, runID string) error {
	run, tasks, err := store.GetRun(cmd.Context(), runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %d/%d succeeded (%.1fs)\n\n",
		run.ID, run.Succeeded, run.Total, run.FinishedAt.Sub(run.StartedAt).Seconds())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tTIME\tDETAIL")
	for _, tr := range tasks {
		detail := preview(tr.Output, 60)
		if tr.Error != "" {
			detail = tr.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%.2fs\t%s\n", tr.TaskID, tr.Status, float64(tr.DurationMS)/1000, detail)
	}
	return w.Flush()
}
