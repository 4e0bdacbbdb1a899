package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parexec/parexec/internal/runner"
)

// TestDispatchConcurrencyCeiling checks that the number of tasks inside
// the runner at any moment never exceeds the configured limit.
func TestDispatchConcurrencyCeiling(t *testing.T) {
	const limit = 3
	const n = 20

	var active, peak int64
	r := runner.Func(func(ctx context.Context, req runner.Request) (runner.Response, error) {
		cur := atomic.AddInt64(&active, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return runner.Response{Output: "ok"}, nil
	})

	var batch Batch
	for i := 0; i < n; i++ {
		batch = append(batch, task(fmt.Sprintf("task-%d", i)))
	}

	d := NewDispatcher(limit, r, nil)
	collector := NewCollector()
	if err := d.Dispatch(context.Background(), batch, collector); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if got := atomic.LoadInt64(&peak); got > limit {
		t.Errorf("peak concurrency = %d, want <= %d", got, limit)
	}
	if collector.Len() != n {
		t.Errorf("recorded %d results, want %d", collector.Len(), n)
	}
}

// TestDispatchFailureIsolation checks that one task's failure does not
// disturb its batch-mates.
func TestDispatchFailureIsolation(t *testing.T) {
	boom := errors.New("agent exploded")
	r := runner.Func(func(ctx context.Context, req runner.Request) (runner.Response, error) {
		if strings.HasPrefix(req.Prompt, "fail") {
			return runner.Response{}, boom
		}
		return runner.Response{Output: "fine"}, nil
	})

	batch := Batch{
		&Task{ID: "good-1", Prompt: "go"},
		&Task{ID: "bad", Prompt: "fail now"},
		&Task{ID: "good-2", Prompt: "go"},
	}

	d := NewDispatcher(4, r, nil)
	collector := NewCollector()
	if err := d.Dispatch(context.Background(), batch, collector); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	for _, id := range []string{"good-1", "good-2"} {
		res, ok := collector.Get(id)
		if !ok || res.Status != StateSucceeded {
			t.Errorf("task %q = %+v, want succeeded", id, res)
		}
	}

	res, ok := collector.Get("bad")
	if !ok {
		t.Fatal("no result for failed task")
	}
	if res.Status != StateFailed {
		t.Errorf("failed task status = %v, want %v", res.Status, StateFailed)
	}
	if !errors.Is(res.Err, boom) {
		t.Errorf("failed task err = %v, want the runner's error", res.Err)
	}
}

// TestDispatchTaskTimeout checks that a per-task deadline cancels only
// that task and is reported as a timeout, not a generic failure.
func TestDispatchTaskTimeout(t *testing.T) {
	r := runner.Func(func(ctx context.Context, req runner.Request) (runner.Response, error) {
		if req.Prompt == "hang" {
			<-ctx.Done()
			return runner.Response{}, ctx.Err()
		}
		return runner.Response{Output: "ok"}, nil
	})

	batch := Batch{
		&Task{ID: "slow", Prompt: "hang", Timeout: 30 * time.Millisecond},
		&Task{ID: "quick", Prompt: "go"},
	}

	d := NewDispatcher(4, r, nil)
	collector := NewCollector()

	start := time.Now()
	if err := d.Dispatch(context.Background(), batch, collector); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Dispatch blocked for %v despite a 30ms task deadline", elapsed)
	}

	res, _ := collector.Get("slow")
	if res == nil || res.Status != StateFailed {
		t.Fatalf("timed-out task = %+v, want failed", res)
	}
	if !strings.Contains(res.Err.Error(), "timed out") {
		t.Errorf("timeout error = %v, want a timeout classification", res.Err)
	}

	if quick, _ := collector.Get("quick"); quick == nil || quick.Status != StateSucceeded {
		t.Errorf("sibling task = %+v, want succeeded", quick)
	}
}

// TestDispatchCancelInFlight checks run-wide cancellation: a task that
// was already inside the runner fails with a run-aborted reason.
func TestDispatchCancelInFlight(t *testing.T) {
	started := make(chan struct{})
	r := runner.Func(func(ctx context.Context, req runner.Request) (runner.Response, error) {
		close(started)
		<-ctx.Done()
		return runner.Response{}, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	d := NewDispatcher(1, r, nil)
	collector := NewCollector()
	if err := d.Dispatch(ctx, Batch{&Task{ID: "A", Prompt: "p"}}, collector); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	res, _ := collector.Get("A")
	if res == nil || res.Status != StateFailed {
		t.Fatalf("cancelled in-flight task = %+v, want failed", res)
	}
	if !errors.Is(res.Err, ErrRunAborted) {
		t.Errorf("err = %v, want wrapped ErrRunAborted", res.Err)
	}
}

// TestDispatchCancelWhileQueued checks that a task still waiting for an
// admission slot when the run is cancelled is skipped, never failed.
func TestDispatchCancelWhileQueued(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	startedIDs := map[string]bool{}

	r := runner.Func(func(ctx context.Context, req runner.Request) (runner.Response, error) {
		mu.Lock()
		startedIDs[req.Prompt] = true
		mu.Unlock()
		<-release
		return runner.Response{Output: "ok"}, nil
	})

	// Limit 1: the second task queues behind the first.
	d := NewDispatcher(1, r, nil)
	collector := NewCollector()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Dispatch(ctx, Batch{
			&Task{ID: "holder", Prompt: "holder"},
			&Task{ID: "queued", Prompt: "queued"},
		}, collector)
	}()

	// Wait until one task holds the slot, then abort the run and let the
	// holder finish.
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(startedIDs)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no task entered the runner")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	mu.Lock()
	started := len(startedIDs)
	mu.Unlock()
	if started != 1 {
		t.Fatalf("%d tasks entered the runner, want 1", started)
	}

	var queuedID string
	for _, id := range []string{"holder", "queued"} {
		if !startedIDs[id] {
			queuedID = id
		}
	}
	res, _ := collector.Get(queuedID)
	if res == nil || res.Status != StateSkipped {
		t.Fatalf("queued task = %+v, want skipped", res)
	}
	if !errors.Is(res.Err, ErrRunAborted) {
		t.Errorf("skip reason = %v, want wrapped ErrRunAborted", res.Err)
	}
}

// TestDispatchDuplicateRecordAborts checks that a pre-existing result for
// a dispatched task surfaces as an internal defect from Dispatch itself.
func TestDispatchDuplicateRecordAborts(t *testing.T) {
	r := runner.Func(func(ctx context.Context, req runner.Request) (runner.Response, error) {
		return runner.Response{Output: "ok"}, nil
	})

	collector := NewCollector()
	collector.Record(&Result{TaskID: "A", Status: StateSucceeded})

	d := NewDispatcher(1, r, nil)
	err := d.Dispatch(context.Background(), Batch{&Task{ID: "A", Prompt: "p"}}, collector)
	if err == nil {
		t.Fatal("Dispatch() succeeded, want duplicate record error")
	}
	if !errors.Is(err, ErrDuplicateRecord) {
		t.Errorf("errors.Is(%v, ErrDuplicateRecord) = false", err)
	}
}
