package scheduler

import (
	"encoding/json"
	"time"
)

// TaskState represents the current state of a task in the executor's
// state machine.
type TaskState int

const (
	StatePending   TaskState = iota // Waiting for its batch to be reached
	StateScheduled                  // Batch reached, waiting for a concurrency slot
	StateRunning                    // Runner invocation in flight
	StateSucceeded                  // Runner returned without error
	StateFailed                     // Runner error, timeout, or cancellation
	StateSkipped                    // Never ran (upstream failure or run aborted)
)

// String returns the wire name of the state, matching Result.Status values.
func (s TaskState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can occur from s.
func (s TaskState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateSkipped
}

// Task is the immutable descriptor of one unit of work. The scheduler
// never interprets Prompt, TurnBudget, Timeout, or the tool lists; they
// are forwarded opaquely to the agent runner.
type Task struct {
	ID           string        // Unique within one run, required
	Description  string        // Human-readable label for progress display
	Prompt       string        // Instruction for the agent runner
	Priority     int           // Tie-break hint within a batch, higher first
	DependsOn    []string      // Task IDs that must be terminal before this task starts
	TurnBudget   int           // Max agent turns, forwarded to the runner
	Timeout      time.Duration // Per-task deadline for the runner call; 0 = none
	ToolsAllowed []string      // Capability names the runner may use
	ToolsBlocked []string      // Capability names the runner must not use
}

// Clone returns a deep copy so callers can hold descriptors across
// goroutines without sharing slices.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.DependsOn != nil {
		cp.DependsOn = append([]string(nil), t.DependsOn...)
	}
	if t.ToolsAllowed != nil {
		cp.ToolsAllowed = append([]string(nil), t.ToolsAllowed...)
	}
	if t.ToolsBlocked != nil {
		cp.ToolsBlocked = append([]string(nil), t.ToolsBlocked...)
	}
	return &cp
}

// Result is the write-once record of one task's outcome. Exactly one is
// created per task, by the collector, at completion or abandonment.
type Result struct {
	TaskID   string        // Back-reference to the Task descriptor
	Status   TaskState     // StateSucceeded, StateFailed, or StateSkipped
	Output   string        // Runner payload, set only on success
	Err      error         // Failure description, set only on failure or skip
	Duration time.Duration // Execution wall-clock, excludes queue time
}

// MarshalJSON serializes a Result for the run-level output record.
func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		TaskID     string  `json:"task_id"`
		Status     string  `json:"status"`
		Output     string  `json:"output,omitempty"`
		Error      string  `json:"error,omitempty"`
		DurationMS float64 `json:"duration_ms"`
	}{
		TaskID:     r.TaskID,
		Status:     r.Status.String(),
		Output:     r.Output,
		DurationMS: float64(r.Duration) / float64(time.Millisecond),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}
