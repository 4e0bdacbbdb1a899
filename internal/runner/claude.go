package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Config holds the instance-level settings of a ClaudeRunner. Per-task
// Request fields override these when set.
type Config struct {
	Command      string // CLI binary, defaults to "claude"
	Model        string
	SystemPrompt string
	WorkDir      string
}

// ClaudeRunner invokes the Claude Code CLI, one subprocess per task.
// Turn budget and tool restrictions from the Request map directly onto
// CLI flags; the runner never inspects them beyond that.
type ClaudeRunner struct {
	cfg     Config
	procMgr *ProcessManager
}

// claudeResult is the JSON envelope printed by `claude --output-format json`.
type claudeResult struct {
	SessionID string `json:"session_id"`
	Result    string `json:"result"`
	IsError   bool   `json:"is_error"`
	Subtype   string `json:"subtype"`
}

// NewClaudeRunner creates a Claude Code CLI runner. The ProcessManager
// is optional; when nil, subprocesses are not tracked for shutdown
// cleanup.
func NewClaudeRunner(cfg Config, procMgr *ProcessManager) *ClaudeRunner {
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	return &ClaudeRunner{
		cfg:     cfg,
		procMgr: procMgr,
	}
}

// Run executes one task through the CLI and returns its result payload.
// Cancellation of ctx kills the subprocess group.
func (r *ClaudeRunner) Run(ctx context.Context, req Request) (Response, error) {
	sessionID := uuid.NewString()
	args := r.buildArgs(req, sessionID)

	cmd := newCommand(ctx, r.cfg.Command, args...)
	switch {
	case req.WorkDir != "":
		cmd.Dir = req.WorkDir
	case r.cfg.WorkDir != "":
		cmd.Dir = r.cfg.WorkDir
	default:
		wd, err := os.Getwd()
		if err != nil {
			return Response{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		cmd.Dir = wd
	}

	stdout, stderr, err := executeCommand(ctx, cmd, r.procMgr)
	if err != nil {
		return Response{}, fmt.Errorf("claude command failed: %w", err)
	}

	resp, err := parseClaudeResult(stdout)
	if err != nil {
		return Response{}, fmt.Errorf("failed to parse claude response: %w (stderr: %s)", err, string(stderr))
	}

	return resp, nil
}

// Close is a no-op: the runner is subprocess-per-invocation.
func (r *ClaudeRunner) Close() error {
	return nil
}

// buildArgs maps a Request onto Claude Code CLI flags.
func (r *ClaudeRunner) buildArgs(req Request, sessionID string) []string {
	args := []string{"-p", req.Prompt, "--output-format", "json", "--session-id", sessionID}

	if req.TurnBudget > 0 {
		args = append(args, "--max-turns", strconv.Itoa(req.TurnBudget))
	}

	model := req.Model
	if model == "" {
		model = r.cfg.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = r.cfg.SystemPrompt
	}
	if systemPrompt != "" {
		args = append(args, "--system-prompt", systemPrompt)
	}

	if len(req.ToolsAllowed) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.ToolsAllowed, ","))
	}
	if len(req.ToolsBlocked) > 0 {
		args = append(args, "--disallowedTools", strings.Join(req.ToolsBlocked, ","))
	}

	return args
}

// parseClaudeResult parses the CLI's JSON envelope.
func parseClaudeResult(data []byte) (Response, error) {
	var cr claudeResult
	if err := json.Unmarshal(data, &cr); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	if cr.IsError {
		return Response{}, fmt.Errorf("agent reported error (%s): %s", cr.Subtype, cr.Result)
	}

	return Response{
		Output:    cr.Result,
		SessionID: cr.SessionID,
	}, nil
}
