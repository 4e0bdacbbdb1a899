package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/parexec/parexec/internal/events"
	"github.com/parexec/parexec/internal/runner"
)

// Dispatcher runs one batch's tasks concurrently behind a run-global
// admission gate. The gate is a counting semaphore shared across every
// batch of the run, so the number of tasks inside a runner call never
// exceeds the configured ceiling regardless of batch sizes.
type Dispatcher struct {
	sem    *semaphore.Weighted
	runner runner.Runner
	bus    *events.Bus // optional; nil disables event publishing
}

// NewDispatcher creates a Dispatcher with the given concurrency ceiling.
// A limit <= 0 falls back to 1.
func NewDispatcher(limit int64, r runner.Runner, bus *events.Bus) *Dispatcher {
	if limit <= 0 {
		limit = 1
	}
	return &Dispatcher{
		sem:    semaphore.NewWeighted(limit),
		runner: r,
		bus:    bus,
	}
}

// Dispatch starts every task in the batch and returns once all of them
// are terminal. Task-level failures (runner error, timeout, cancellation)
// are recorded in the collector and never returned; the only error paths
// out of Dispatch are collector invariant violations, which abort the run.
func (d *Dispatcher) Dispatch(ctx context.Context, batch Batch, collector *Collector) error {
	g := new(errgroup.Group)

	for _, task := range batch {
		t := task
		g.Go(func() error {
			return d.executeTask(ctx, t, collector)
		})
	}

	return g.Wait()
}

// executeTask drives one task through slot acquisition, the runner call,
// and outcome recording. The two suspension points are the semaphore
// acquire and the runner call itself; both honor ctx.
func (d *Dispatcher) executeTask(ctx context.Context, t *Task, collector *Collector) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		// Run aborted while the task was still waiting for a slot: it
		// never started, so it is skipped rather than failed.
		res := &Result{
			TaskID: t.ID,
			Status: StateSkipped,
			Err:    fmt.Errorf("%w: %v", ErrRunAborted, err),
		}
		d.publishSkipped(res)
		return collector.Record(res)
	}
	defer d.sem.Release(1)

	d.publish(events.TopicTask, events.TaskStartedEvent{
		ID:          t.ID,
		Description: t.Description,
		Timestamp:   time.Now(),
	})

	runCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := d.runner.Run(runCtx, runner.Request{
		Prompt:       t.Prompt,
		TurnBudget:   t.TurnBudget,
		Timeout:      t.Timeout,
		ToolsAllowed: t.ToolsAllowed,
		ToolsBlocked: t.ToolsBlocked,
	})
	duration := time.Since(start)

	if err != nil {
		res := &Result{
			TaskID:   t.ID,
			Status:   StateFailed,
			Err:      classifyFailure(t, runCtx, err),
			Duration: duration,
		}
		d.publish(events.TopicTask, events.TaskFailedEvent{
			ID:        t.ID,
			Err:       res.Err,
			Duration:  duration,
			Timestamp: time.Now(),
		})
		return collector.Record(res)
	}

	res := &Result{
		TaskID:   t.ID,
		Status:   StateSucceeded,
		Output:   resp.Output,
		Duration: duration,
	}
	d.publish(events.TopicTask, events.TaskSucceededEvent{
		ID:        t.ID,
		Output:    resp.Output,
		Duration:  duration,
		Timestamp: time.Now(),
	})
	return collector.Record(res)
}

// classifyFailure distinguishes the task's own deadline from a run-wide
// cancellation and from plain runner errors.
func classifyFailure(t *Task, runCtx context.Context, err error) error {
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("task timed out after %v: %w", t.Timeout, err)
	case errors.Is(runCtx.Err(), context.Canceled):
		return fmt.Errorf("%w: %v", ErrRunAborted, err)
	default:
		return err
	}
}

func (d *Dispatcher) publishSkipped(res *Result) {
	d.publish(events.TopicTask, events.TaskSkippedEvent{
		ID:        res.TaskID,
		Reason:    res.Err,
		Timestamp: time.Now(),
	})
}

func (d *Dispatcher) publish(topic string, e events.Event) {
	if d.bus != nil {
		d.bus.Publish(topic, e)
	}
}
