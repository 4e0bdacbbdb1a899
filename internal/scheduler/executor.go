package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/parexec/parexec/internal/events"
	"github.com/parexec/parexec/internal/runner"
)

// Policy decides what happens to a task whose dependency ended in
// failure. It is applied uniformly to the whole run.
type Policy string

const (
	// SkipOnDependencyFailure marks the task skipped and never invokes
	// the runner. A skipped dependency gates downstream tasks the same
	// way a failed one does. This is the default.
	SkipOnDependencyFailure Policy = "skip"

	// RunOnDependencyFailure treats dependencies as ordering only: the
	// task runs even when an upstream task failed.
	RunOnDependencyFailure Policy = "run"
)

// ParsePolicy converts a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case SkipOnDependencyFailure, RunOnDependencyFailure:
		return Policy(s), nil
	case "":
		return SkipOnDependencyFailure, nil
	default:
		return "", fmt.Errorf("unknown dependency-failure policy %q (want %q or %q)",
			s, SkipOnDependencyFailure, RunOnDependencyFailure)
	}
}

// Executor turns a task set into batches and drives them to completion
// in strict batch order. It is the only component that composes the
// resolver, dispatcher, and collector.
type Executor struct {
	dispatcher *Dispatcher
	collector  *Collector
	bus        *events.Bus
	policy     Policy
}

// Options configures an Executor.
type Options struct {
	MaxParallel int         // Run-global concurrency ceiling (default 4)
	Policy      Policy      // Dependency-failure policy (default skip)
	Bus         *events.Bus // Optional progress event sink
}

// NewExecutor creates an Executor that dispatches tasks to r.
func NewExecutor(r runner.Runner, opts Options) *Executor {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 4
	}
	if opts.Policy == "" {
		opts.Policy = SkipOnDependencyFailure
	}
	return &Executor{
		dispatcher: NewDispatcher(int64(opts.MaxParallel), r, opts.Bus),
		collector:  NewCollector(),
		bus:        opts.Bus,
		policy:     opts.Policy,
	}
}

// Policy returns the dependency-failure policy in effect.
func (e *Executor) Policy() Policy { return e.policy }

// Run resolves the task set and executes it batch by batch. Batch k+1 is
// not started until every task in batch k is terminal. The returned map
// holds exactly one Result per submitted task and is complete even when
// some tasks failed; only configuration errors (before any execution)
// and internal defects make Run return a non-nil error alongside
// whatever results exist at that point.
//
// Cancelling ctx cancels in-flight runner calls (recorded as failed) and
// marks every not-yet-started task skipped with a run-aborted reason.
func (e *Executor) Run(ctx context.Context, tasks []*Task) (map[string]*Result, error) {
	batches, err := Resolve(tasks)
	if err != nil {
		return nil, err
	}

	for i, batch := range batches {
		if ctx.Err() != nil {
			e.skipRemaining(batches[i:])
			return e.collector.Snapshot(), ctx.Err()
		}

		runnable := e.scheduleBatch(i, batch)

		if len(runnable) > 0 {
			if err := e.dispatcher.Dispatch(ctx, runnable, e.collector); err != nil {
				// Collector invariant violation: internal defect, run aborts.
				return e.collector.Snapshot(), err
			}
		}

		if ctx.Err() != nil {
			e.skipRemaining(batches[i+1:])
			return e.collector.Snapshot(), ctx.Err()
		}

		e.publishProgress(i, len(batches), len(tasks))
	}

	return e.collector.Snapshot(), nil
}

// Results returns the collector's current id -> Result snapshot.
func (e *Executor) Results() map[string]*Result {
	return e.collector.Snapshot()
}

// scheduleBatch applies the dependency-failure policy and announces the
// pending -> scheduled transition for the tasks that will run.
func (e *Executor) scheduleBatch(index int, batch Batch) Batch {
	var runnable Batch
	for _, t := range batch {
		if e.policy == SkipOnDependencyFailure {
			if depID, ok := e.failedDependency(t); ok {
				e.recordSkip(t, fmt.Errorf("dependency %q: %w", depID, ErrDependencyFailed))
				continue
			}
		}

		e.publish(events.TopicTask, events.TaskScheduledEvent{
			ID:          t.ID,
			Description: t.Description,
			Batch:       index,
			Timestamp:   time.Now(),
		})
		runnable = append(runnable, t)
	}
	return runnable
}

// failedDependency returns the first dependency that did not succeed.
// Resolution guarantees every dependency is terminal by the time the
// task's batch is reached, so a missing result cannot occur here.
func (e *Executor) failedDependency(t *Task) (string, bool) {
	for _, depID := range t.DependsOn {
		if !e.collector.Succeeded(depID) {
			return depID, true
		}
	}
	return "", false
}

// skipRemaining records a run-aborted skip for every task in the given
// batches that has no result yet. Dispatch has fully returned by the
// time this runs, so the has-result check cannot race with Record.
func (e *Executor) skipRemaining(batches []Batch) {
	for _, batch := range batches {
		for _, t := range batch {
			if _, done := e.collector.Get(t.ID); done {
				continue
			}
			e.recordSkip(t, ErrRunAborted)
		}
	}
}

func (e *Executor) recordSkip(t *Task, reason error) {
	res := &Result{
		TaskID: t.ID,
		Status: StateSkipped,
		Err:    reason,
	}
	// Record can only fail on a double record, which scheduleBatch and
	// skipRemaining both rule out by checking the collector first.
	if err := e.collector.Record(res); err != nil {
		return
	}
	e.publish(events.TopicTask, events.TaskSkippedEvent{
		ID:        t.ID,
		Reason:    reason,
		Timestamp: time.Now(),
	})
}

func (e *Executor) publishProgress(batch, batches, total int) {
	var succeeded, failed, skipped int
	for _, res := range e.collector.Snapshot() {
		switch res.Status {
		case StateSucceeded:
			succeeded++
		case StateFailed:
			failed++
		case StateSkipped:
			skipped++
		}
	}
	e.publish(events.TopicRun, events.RunProgressEvent{
		Total:     total,
		Succeeded: succeeded,
		Failed:    failed,
		Skipped:   skipped,
		Batch:     batch,
		Batches:   batches,
		Timestamp: time.Now(),
	})
}

func (e *Executor) publish(topic string, ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(topic, ev)
	}
}
