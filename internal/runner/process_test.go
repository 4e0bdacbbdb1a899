package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExecuteCommandCapturesOutput(t *testing.T) {
	ctx := context.Background()
	cmd := newCommand(ctx, "sh", "-c", "echo out; echo err >&2")

	stdout, stderr, err := executeCommand(ctx, cmd, nil)
	if err != nil {
		t.Fatalf("executeCommand() error = %v", err)
	}
	if got := strings.TrimSpace(string(stdout)); got != "out" {
		t.Errorf("stdout = %q, want %q", got, "out")
	}
	if got := strings.TrimSpace(string(stderr)); got != "err" {
		t.Errorf("stderr = %q, want %q", got, "err")
	}
}

func TestExecuteCommandFailureIncludesStderr(t *testing.T) {
	ctx := context.Background()
	cmd := newCommand(ctx, "sh", "-c", "echo broken >&2; exit 3")

	_, _, err := executeCommand(ctx, cmd, nil)
	if err == nil {
		t.Fatal("executeCommand() succeeded, want exit error")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error %q does not carry stderr", err)
	}
}

// TestExecuteCommandCancellation checks that a context deadline surfaces
// as the context's error rather than the subprocess's kill signal.
func TestExecuteCommandCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cmd := newCommand(ctx, "sleep", "30")

	start := time.Now()
	_, _, err := executeCommand(ctx, cmd, nil)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("executeCommand blocked for %v past its deadline", elapsed)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestProcessManagerTracking(t *testing.T) {
	pm := NewProcessManager()
	if pm.Count() != 0 {
		t.Fatalf("Count() = %d on a fresh manager, want 0", pm.Count())
	}

	ctx := context.Background()
	cmd := newCommand(ctx, "sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	pm.Track(cmd)
	if pm.Count() != 1 {
		t.Errorf("Count() = %d after Track, want 1", pm.Count())
	}

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll() error = %v", err)
	}
	cmd.Wait()

	pm.Untrack(cmd)
	if pm.Count() != 0 {
		t.Errorf("Count() = %d after Untrack, want 0", pm.Count())
	}
}

func TestProcessManagerIgnoresUnstarted(t *testing.T) {
	pm := NewProcessManager()
	cmd := newCommand(context.Background(), "sleep", "30")

	// Never started: nothing to track, nothing to kill.
	pm.Track(cmd)
	if pm.Count() != 0 {
		t.Errorf("Count() = %d for an unstarted command, want 0", pm.Count())
	}
	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll() error = %v on an empty manager", err)
	}
}
