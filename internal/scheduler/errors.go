package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for errors.Is checks.
var (
	ErrCycle           = errors.New("dependency cycle detected")
	ErrUnknownDep      = errors.New("unknown dependency reference")
	ErrDuplicateID     = errors.New("duplicate task id")
	ErrEmptyID         = errors.New("empty task id")
	ErrDuplicateRecord = errors.New("result already recorded")
	ErrRunAborted      = errors.New("run aborted")
	ErrDependencyFailed = errors.New("upstream dependency failed")
)

// Issue describes one configuration problem found during resolution.
type Issue struct {
	TaskID string
	Err    error // one of the sentinel errors above
	Detail string
}

func (i Issue) String() string {
	if i.Detail == "" {
		return fmt.Sprintf("task %q: %v", i.TaskID, i.Err)
	}
	return fmt.Sprintf("task %q: %v (%s)", i.TaskID, i.Err, i.Detail)
}

// ValidationError aggregates every configuration problem in a task set.
// Resolution reports all offending tasks at once rather than failing on
// the first one, so callers can fix a task file in a single pass.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid task set"
	}
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return fmt.Sprintf("invalid task set: %s", strings.Join(msgs, "; "))
}

// Is reports a match when any aggregated issue wraps the target.
func (e *ValidationError) Is(target error) bool {
	for _, issue := range e.Issues {
		if errors.Is(issue.Err, target) {
			return true
		}
	}
	return false
}

// CycleError reports that batching made no progress. Remaining holds the
// ids of every task that could not be placed in a batch; at least one of
// them participates in a cycle.
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	ids := append([]string(nil), e.Remaining...)
	sort.Strings(ids)
	return fmt.Sprintf("dependency cycle detected among tasks: %s", strings.Join(ids, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }
