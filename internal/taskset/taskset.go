// Package taskset loads task definitions from JSON files and provides
// the built-in template task sets. It validates shape only (field
// presence and basic sanity); dependency semantics are the resolver's
// concern.
package taskset

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/parexec/parexec/internal/config"
	"github.com/parexec/parexec/internal/scheduler"
)

// Definition is the serialized form of one task.
type Definition struct {
	ID           string   `json:"id"`
	Description  string   `json:"description,omitempty"`
	Prompt       string   `json:"prompt"`
	Priority     int      `json:"priority,omitempty"`
	MaxTurns     int      `json:"max_turns,omitempty"`
	TimeoutSec   float64  `json:"timeout,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	ToolsAllowed []string `json:"tools_allowed,omitempty"`
	ToolsBlocked []string `json:"tools_blocked,omitempty"`
}

// Load reads a JSON array of task definitions from path and converts it
// to scheduler tasks, applying config defaults for unset budgets.
func Load(path string, cfg *config.Config) ([]*scheduler.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}

	var defs []Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return Convert(defs, cfg)
}

// Convert validates definitions and produces scheduler tasks.
func Convert(defs []Definition, cfg *config.Config) ([]*scheduler.Task, error) {
	var problems []string
	tasks := make([]*scheduler.Task, 0, len(defs))

	for i, def := range defs {
		if strings.TrimSpace(def.ID) == "" {
			problems = append(problems, fmt.Sprintf("definition %d: missing id", i))
		}
		if strings.TrimSpace(def.Prompt) == "" {
			problems = append(problems, fmt.Sprintf("definition %d (%s): missing prompt", i, def.ID))
		}
		if def.MaxTurns < 0 {
			problems = append(problems, fmt.Sprintf("definition %d (%s): negative max_turns", i, def.ID))
		}
		if def.TimeoutSec < 0 {
			problems = append(problems, fmt.Sprintf("definition %d (%s): negative timeout", i, def.ID))
		}

		tasks = append(tasks, toTask(def, cfg))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid task definitions: %s", strings.Join(problems, "; "))
	}
	return tasks, nil
}

func toTask(def Definition, cfg *config.Config) *scheduler.Task {
	turns := def.MaxTurns
	if turns == 0 && cfg != nil {
		turns = cfg.DefaultTurnBudget
	}

	timeout := time.Duration(def.TimeoutSec * float64(time.Second))
	if def.TimeoutSec == 0 && cfg != nil {
		timeout = time.Duration(cfg.DefaultTimeoutSec) * time.Second
	}

	desc := def.Description
	if desc == "" {
		desc = def.ID
	}

	return &scheduler.Task{
		ID:           def.ID,
		Description:  desc,
		Prompt:       def.Prompt,
		Priority:     def.Priority,
		DependsOn:    def.Dependencies,
		TurnBudget:   turns,
		Timeout:      timeout,
		ToolsAllowed: def.ToolsAllowed,
		ToolsBlocked: def.ToolsBlocked,
	}
}
