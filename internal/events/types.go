package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask = "task"
	TopicRun  = "run"
)

// Event type constants, one per task state transition plus run progress.
const (
	EventTypeTaskScheduled = "task.scheduled"
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskSucceeded = "task.succeeded"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskSkipped   = "task.skipped"
	EventTypeRunProgress   = "run.progress"
)

// TaskScheduledEvent is published when a task's batch is reached and the
// task begins waiting for a concurrency slot.
type TaskScheduledEvent struct {
	ID          string
	Description string
	Batch       int
	Timestamp   time.Time
}

func (e TaskScheduledEvent) EventType() string { return EventTypeTaskScheduled }
func (e TaskScheduledEvent) TaskID() string    { return e.ID }

// TaskStartedEvent is published when a slot is acquired and the runner
// invocation begins.
type TaskStartedEvent struct {
	ID          string
	Description string
	Timestamp   time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskSucceededEvent is published when the runner returns without error.
type TaskSucceededEvent struct {
	ID        string
	Output    string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskSucceededEvent) EventType() string { return EventTypeTaskSucceeded }
func (e TaskSucceededEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when the runner errors, times out, or is
// cancelled mid-flight.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskSkippedEvent is published when a task is abandoned without ever
// invoking the runner: an upstream dependency failed, or the run was
// aborted before the task started.
type TaskSkippedEvent struct {
	ID        string
	Reason    error
	Timestamp time.Time
}

func (e TaskSkippedEvent) EventType() string { return EventTypeTaskSkipped }
func (e TaskSkippedEvent) TaskID() string    { return e.ID }

// RunProgressEvent is published after every terminal transition with the
// run-wide tally.
type RunProgressEvent struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Running   int
	Batch     int // Current batch index, 0-based
	Batches   int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) TaskID() string    { return "" }
