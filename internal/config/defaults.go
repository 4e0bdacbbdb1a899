package config

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxParallel:         4,
		DefaultTurnBudget:   5,
		DefaultTimeoutSec:   0,
		OnDependencyFailure: "skip",
		Runner: RunnerConfig{
			Command: "claude",
		},
		Retry: RetryConfig{
			Enabled: true,
		},
	}
}
