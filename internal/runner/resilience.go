package runner

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff for transport-level agent
// failures. Retries happen inside a single task invocation window: the
// task's own context (and therefore its timeout) bounds the whole loop,
// and a task that produced a terminal outcome is never re-run.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// BreakerRegistry manages one circuit breaker per runner kind, so a
// persistently failing agent CLI stops being invoked for a cooldown
// period instead of burning every task in a batch.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates an empty registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the breaker for the given runner kind, creating it on
// first use.
func (r *BreakerRegistry) Get(kind string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[kind]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        kind,
		MaxRequests: 3,                // Test requests allowed in half-open state
		Interval:    0,                // Never clear counts automatically
		Timeout:     30 * time.Second, // Open duration before probing recovery
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Task cancellation and timeouts are the caller's doing,
			// not agent health signals.
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	r.breakers[kind] = cb
	return cb
}

// Resilient wraps a Runner with retry and circuit breaker protection.
// It satisfies Runner, so the dispatcher is unaware of the wrapping.
type Resilient struct {
	inner Runner
	cb    *gobreaker.CircuitBreaker
	cfg   RetryConfig
}

// WithResilience wraps inner with the given breaker and retry policy.
func WithResilience(inner Runner, cb *gobreaker.CircuitBreaker, cfg RetryConfig) *Resilient {
	return &Resilient{inner: inner, cb: cb, cfg: cfg}
}

// Run invokes the inner runner with exponential backoff and breaker
// protection. Cancellation of ctx stops the retry loop immediately.
func (r *Resilient) Run(ctx context.Context, req Request) (Response, error) {
	var resp Response

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		result, err := r.cb.Execute(func() (interface{}, error) {
			return r.inner.Run(ctx, req)
		})

		if err != nil {
			// Open circuit: retrying would only hammer a known-bad agent.
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		resp = result.(Response)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.InitialInterval
	policy.MaxInterval = r.cfg.MaxInterval
	policy.MaxElapsedTime = r.cfg.MaxElapsedTime
	policy.Multiplier = r.cfg.Multiplier
	policy.RandomizationFactor = r.cfg.RandomizationFactor

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	return resp, err
}

// Close closes the inner runner.
func (r *Resilient) Close() error {
	return r.inner.Close()
}
