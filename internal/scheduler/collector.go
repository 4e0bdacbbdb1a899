package scheduler

import (
	"fmt"
	"sync"
)

// Collector accumulates exactly one Result per task across all batches.
// Record is safe under concurrent calls from simultaneously running tasks;
// completed results are visible to later batches through Get.
type Collector struct {
	mu      sync.RWMutex
	results map[string]*Result
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		results: make(map[string]*Result),
	}
}

// Record stores the result for a task. A second Record for the same task
// id violates the dispatcher's one-invocation-per-task invariant and is
// an internal defect, not a task-level failure: it returns an error
// wrapping ErrDuplicateRecord and the executor aborts the run.
func (c *Collector) Record(res *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.results[res.TaskID]; exists {
		return fmt.Errorf("task %q: %w", res.TaskID, ErrDuplicateRecord)
	}

	c.results[res.TaskID] = res
	return nil
}

// Get returns the recorded result for a task, if any. Later batches use
// this to surface the outputs of their declared dependencies.
func (c *Collector) Get(taskID string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res, ok := c.results[taskID]
	return res, ok
}

// Succeeded reports whether the task has a recorded successful result.
func (c *Collector) Succeeded(taskID string) bool {
	res, ok := c.Get(taskID)
	return ok && res.Status == StateSucceeded
}

// Snapshot returns a copy of the id -> Result mapping. Results themselves
// are write-once after Record, so sharing the pointers is safe.
func (c *Collector) Snapshot() map[string]*Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]*Result, len(c.results))
	for id, res := range c.results {
		out[id] = res
	}
	return out
}

// Len returns the number of recorded results.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
