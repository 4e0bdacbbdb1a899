// Package runner is the boundary with the external agent that performs a
// task's actual work. The scheduler hands a Request across this boundary
// and receives an opaque payload or an error; everything the agent does
// in between is not this system's concern.
package runner

import (
	"context"
	"time"
)

// Request carries one task's prompt and execution constraints to the
// agent. Tool lists are closed sets of capability names; enforcement is
// the agent's responsibility, never the caller's.
type Request struct {
	Prompt       string
	TurnBudget   int           // Max agent turns; <= 0 means the agent's default
	Timeout      time.Duration // Informational; the caller enforces it via ctx
	ToolsAllowed []string
	ToolsBlocked []string
	WorkDir      string
	Model        string
	SystemPrompt string
}

// Response is the opaque payload returned by a successful invocation.
type Response struct {
	Output    string
	SessionID string
}

// Runner executes a single task's work. Implementations must honor
// context cancellation: when ctx is done, Run returns promptly and any
// underlying work is torn down.
type Runner interface {
	Run(ctx context.Context, req Request) (Response, error)
	Close() error
}

// Func adapts a plain function to the Runner interface. Used heavily by
// tests to script outcomes without a subprocess.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Run(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

func (f Func) Close() error { return nil }
