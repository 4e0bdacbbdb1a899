package config

// RunnerConfig defines how the agent CLI is invoked. The scheduler never
// reads these; they configure the runner adapter only.
type RunnerConfig struct {
	Command      string `json:"command" yaml:"command"`                                   // CLI binary name (default "claude")
	Model        string `json:"model,omitempty" yaml:"model,omitempty"`                   // Model override
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`   // Prompt prepended by the agent
	WorkDir      string `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`             // Working directory for agent subprocesses
}

// RetryConfig tunes the transport-level retry wrapper around the runner.
type RetryConfig struct {
	Enabled       bool `json:"enabled" yaml:"enabled"`
	InitialMS     int  `json:"initial_ms,omitempty" yaml:"initial_ms,omitempty"`
	MaxIntervalMS int  `json:"max_interval_ms,omitempty" yaml:"max_interval_ms,omitempty"`
	MaxElapsedMS  int  `json:"max_elapsed_ms,omitempty" yaml:"max_elapsed_ms,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	// MaxParallel is the run-global concurrency ceiling. Values above
	// MaxParallelCap are clamped.
	MaxParallel int `json:"max_parallel" yaml:"max_parallel"`

	// DefaultTurnBudget applies to tasks that do not set their own.
	DefaultTurnBudget int `json:"default_turn_budget" yaml:"default_turn_budget"`

	// DefaultTimeoutSec applies to tasks that do not set their own.
	// Zero means no per-task deadline.
	DefaultTimeoutSec int `json:"default_timeout_sec" yaml:"default_timeout_sec"`

	// OnDependencyFailure is "skip" or "run"; see scheduler.Policy.
	OnDependencyFailure string `json:"on_dependency_failure" yaml:"on_dependency_failure"`

	// HistoryDB is the path of the SQLite run-history database.
	// Empty disables persistence.
	HistoryDB string `json:"history_db,omitempty" yaml:"history_db,omitempty"`

	Runner RunnerConfig `json:"runner" yaml:"runner"`
	Retry  RetryConfig  `json:"retry" yaml:"retry"`
}

// MaxParallelCap is the hard ceiling on concurrent agent invocations the
// upstream SDK supports.
const MaxParallelCap = 10

// Normalize clamps and defaults fields after merging.
func (c *Config) Normalize() {
	if c.MaxParallel <= 0 {
		c.MaxParallel = 4
	}
	if c.MaxParallel > MaxParallelCap {
		c.MaxParallel = MaxParallelCap
	}
	if c.DefaultTurnBudget <= 0 {
		c.DefaultTurnBudget = 5
	}
	if c.OnDependencyFailure == "" {
		c.OnDependencyFailure = "skip"
	}
	if c.Runner.Command == "" {
		c.Runner.Command = "claude"
	}
}
