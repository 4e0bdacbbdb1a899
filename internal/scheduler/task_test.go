package scheduler

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTaskStateString(t *testing.T) {
	tests := []struct {
		state TaskState
		want  string
	}{
		{StatePending, "pending"},
		{StateScheduled, "scheduled"},
		{StateRunning, "running"},
		{StateSucceeded, "succeeded"},
		{StateFailed, "failed"},
		{StateSkipped, "skipped"},
		{TaskState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("TaskState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestTaskStateTerminal(t *testing.T) {
	terminal := map[TaskState]bool{
		StatePending:   false,
		StateScheduled: false,
		StateRunning:   false,
		StateSucceeded: true,
		StateFailed:    true,
		StateSkipped:   true,
	}
	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Errorf("%v.Terminal() = %v, want %v", state, got, want)
		}
	}
}

func TestTaskClone(t *testing.T) {
	orig := &Task{
		ID:           "A",
		DependsOn:    []string{"B", "C"},
		ToolsAllowed: []string{"Read"},
	}

	cp := orig.Clone()
	cp.DependsOn[0] = "mutated"
	cp.ToolsAllowed[0] = "Write"

	if orig.DependsOn[0] != "B" {
		t.Error("Clone shares the DependsOn slice")
	}
	if orig.ToolsAllowed[0] != "Read" {
		t.Error("Clone shares the ToolsAllowed slice")
	}

	var nilTask *Task
	if nilTask.Clone() != nil {
		t.Error("Clone of nil = non-nil")
	}
}

func TestResultMarshalJSON(t *testing.T) {
	res := Result{
		TaskID:   "A",
		Status:   StateFailed,
		Err:      errors.New("agent exploded"),
		Duration: 1234 * time.Millisecond,
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["task_id"] != "A" || decoded["status"] != "failed" {
		t.Errorf("decoded = %v", decoded)
	}
	if decoded["error"] != "agent exploded" {
		t.Errorf("error = %v", decoded["error"])
	}
	if decoded["duration_ms"] != float64(1234) {
		t.Errorf("duration_ms = %v, want 1234", decoded["duration_ms"])
	}

	// Success omits the error field entirely.
	ok := Result{TaskID: "B", Status: StateSucceeded, Output: "out"}
	data, err = json.Marshal(ok)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), `"error"`) {
		t.Errorf("successful result serialized an error field: %s", data)
	}
}
