package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCollectorRecordAndGet(t *testing.T) {
	c := NewCollector()

	res := &Result{TaskID: "A", Status: StateSucceeded, Output: "done", Duration: time.Second}
	if err := c.Record(res); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, ok := c.Get("A")
	if !ok {
		t.Fatal("Get(A) = not found")
	}
	if got.Status != StateSucceeded || got.Output != "done" {
		t.Errorf("Get(A) = %+v, want recorded result", got)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) = found, want not found")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCollectorDuplicateRecord(t *testing.T) {
	c := NewCollector()

	if err := c.Record(&Result{TaskID: "A", Status: StateSucceeded}); err != nil {
		t.Fatalf("first Record() error = %v", err)
	}

	err := c.Record(&Result{TaskID: "A", Status: StateFailed})
	if err == nil {
		t.Fatal("second Record() succeeded, want ErrDuplicateRecord")
	}
	if !errors.Is(err, ErrDuplicateRecord) {
		t.Errorf("errors.Is(%v, ErrDuplicateRecord) = false", err)
	}

	// First write wins; the duplicate must not clobber it.
	got, _ := c.Get("A")
	if got.Status != StateSucceeded {
		t.Errorf("Get(A).Status = %v, want %v", got.Status, StateSucceeded)
	}
}

func TestCollectorSucceeded(t *testing.T) {
	c := NewCollector()
	c.Record(&Result{TaskID: "ok", Status: StateSucceeded})
	c.Record(&Result{TaskID: "bad", Status: StateFailed, Err: errors.New("boom")})
	c.Record(&Result{TaskID: "skip", Status: StateSkipped})

	tests := []struct {
		id   string
		want bool
	}{
		{"ok", true},
		{"bad", false},
		{"skip", false},
		{"unrecorded", false},
	}
	for _, tt := range tests {
		if got := c.Succeeded(tt.id); got != tt.want {
			t.Errorf("Succeeded(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestCollectorConcurrentRecord(t *testing.T) {
	c := NewCollector()

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- c.Record(&Result{
				TaskID: fmt.Sprintf("task-%d", i),
				Status: StateSucceeded,
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Record() error = %v", err)
		}
	}
	if c.Len() != n {
		t.Errorf("Len() = %d, want %d", c.Len(), n)
	}
}

func TestCollectorSnapshotIsCopy(t *testing.T) {
	c := NewCollector()
	c.Record(&Result{TaskID: "A", Status: StateSucceeded})

	snap := c.Snapshot()
	delete(snap, "A")

	if _, ok := c.Get("A"); !ok {
		t.Error("mutating a snapshot affected the collector")
	}
}
