package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/parexec/parexec/internal/config"
	"github.com/parexec/parexec/internal/events"
	"github.com/parexec/parexec/internal/persistence"
	"github.com/parexec/parexec/internal/runner"
	"github.com/parexec/parexec/internal/scheduler"
	"github.com/parexec/parexec/internal/taskset"
	"github.com/parexec/parexec/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run <tasks.json>",
	Short: "Run a task set from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tasks, err := taskset.Load(args[0], cfg)
		if err != nil {
			return err
		}
		return executeTasks(cmd.Context(), cfg, tasks)
	},
}

// executeTasks is the shared pipeline behind run, explore, and feature:
// wire runner + bus + executor, drive the run to completion, then render
// the summary and persist the results.
func executeTasks(parent context.Context, cfg *config.Config, tasks []*scheduler.Task) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pm := runner.NewProcessManager()
	go func() {
		<-ctx.Done()
		if err := pm.KillAll(); err != nil {
			log.Printf("WARNING: failed to kill agent subprocesses: %v", err)
		}
	}()

	var r runner.Runner = runner.NewClaudeRunner(runner.Config{
		Command:      cfg.Runner.Command,
		Model:        cfg.Runner.Model,
		SystemPrompt: cfg.Runner.SystemPrompt,
		WorkDir:      cfg.Runner.WorkDir,
	}, pm)
	if cfg.Retry.Enabled {
		breakers := runner.NewBreakerRegistry()
		r = runner.WithResilience(r, breakers.Get(cfg.Runner.Command), retryConfig(cfg.Retry))
	}
	defer r.Close()

	policy, err := scheduler.ParsePolicy(cfg.OnDependencyFailure)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	exec := scheduler.NewExecutor(r, scheduler.Options{
		MaxParallel: cfg.MaxParallel,
		Policy:      policy,
		Bus:         bus,
	})

	started := time.Now()
	results, runErr := driveRun(ctx, exec, tasks, bus)
	finished := time.Now()

	if runErr != nil && results == nil {
		// Configuration error: nothing ran, nothing to report.
		return runErr
	}

	printSummary(results, finished.Sub(started))

	if flagOutput != "" {
		if err := saveResults(results, flagOutput); err != nil {
			return err
		}
		fmt.Printf("Results saved to %s\n", flagOutput)
	}

	if !flagNoHistory {
		if err := recordHistory(cfg, results, started, finished); err != nil {
			log.Printf("WARNING: failed to record run history: %v", err)
		}
	}

	return runErr
}

// driveRun executes the task set while a consumer drains the event bus:
// the live TUI by default, a plain log printer with --no-tui.
func driveRun(ctx context.Context, exec *scheduler.Executor, tasks []*scheduler.Task, bus *events.Bus) (map[string]*scheduler.Result, error) {
	if flagNoTUI {
		done := make(chan struct{})
		go logEvents(bus.SubscribeAll(256), done)

		results, err := exec.Run(ctx, tasks)
		bus.Close()
		<-done
		return results, err
	}

	p := tea.NewProgram(tui.New(bus))

	type runOutcome struct {
		results map[string]*scheduler.Result
		err     error
	}
	outcome := make(chan runOutcome, 1)
	go func() {
		results, err := exec.Run(ctx, tasks)
		bus.Close() // quits the TUI once the last event is drained
		outcome <- runOutcome{results, err}
	}()

	if _, err := p.Run(); err != nil {
		log.Printf("WARNING: progress view failed: %v", err)
	}

	o := <-outcome
	return o.results, o.err
}

// logEvents prints task transitions as plain log lines.
func logEvents(sub <-chan events.Event, done chan<- struct{}) {
	defer close(done)
	for event := range sub {
		switch e := event.(type) {
		case events.TaskStartedEvent:
			log.Printf("started %s (%s)", e.ID, e.Description)
		case events.TaskSucceededEvent:
			log.Printf("succeeded %s in %.1fs", e.ID, e.Duration.Seconds())
		case events.TaskFailedEvent:
			log.Printf("failed %s after %.1fs: %v", e.ID, e.Duration.Seconds(), e.Err)
		case events.TaskSkippedEvent:
			log.Printf("skipped %s: %v", e.ID, e.Reason)
		}
	}
}

// printSummary renders the per-task outcome table and run totals.
func printSummary(results map[string]*scheduler.Result, elapsed time.Duration) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tTIME\tDETAIL")

	var succeeded int
	for _, id := range sortedIDs(results) {
		res := results[id]
		detail := preview(res.Output, 60)
		if res.Err != nil {
			detail = res.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%.2fs\t%s\n", res.TaskID, res.Status, res.Duration.Seconds(), detail)
		if res.Status == scheduler.StateSucceeded {
			succeeded++
		}
	}
	w.Flush()
	fmt.Printf("\n%d/%d tasks succeeded, total time %.2fs\n", succeeded, len(results), elapsed.Seconds())
}

// saveResults writes the id -> result map as indented JSON.
func saveResults(results map[string]*scheduler.Result, path string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing results to %s: %w", path, err)
	}
	return nil
}

// recordHistory persists the run in the SQLite history store.
func recordHistory(cfg *config.Config, results map[string]*scheduler.Result, started, finished time.Time) error {
	path, err := historyPath(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := persistence.NewSQLiteStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	run := persistence.RunRecord{
		ID:         uuid.NewString()[:8],
		StartedAt:  started,
		FinishedAt: finished,
		Total:      len(results),
	}
	for _, res := range results {
		switch res.Status {
		case scheduler.StateSucceeded:
			run.Succeeded++
		case scheduler.StateFailed:
			run.Failed++
		case scheduler.StateSkipped:
			run.Skipped++
		}
	}

	return store.SaveRun(ctx, run, results)
}

// historyPath resolves the history database location.
func historyPath(cfg *config.Config) (string, error) {
	if cfg.HistoryDB != "" {
		return cfg.HistoryDB, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".parexec", "history.db"), nil
}

func sortedIDs(results map[string]*scheduler.Result) []string {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func retryConfig(rc config.RetryConfig) runner.RetryConfig {
	cfg := runner.DefaultRetryConfig()
	if rc.InitialMS > 0 {
		cfg.InitialInterval = time.Duration(rc.InitialMS) * time.Millisecond
	}
	if rc.MaxIntervalMS > 0 {
		cfg.MaxInterval = time.Duration(rc.MaxIntervalMS) * time.Millisecond
	}
	if rc.MaxElapsedMS > 0 {
		cfg.MaxElapsedTime = time.Duration(rc.MaxElapsedMS) * time.Millisecond
	}
	return cfg
}
