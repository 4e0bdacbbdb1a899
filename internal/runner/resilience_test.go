package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

// fastRetry keeps test retry loops in the millisecond range.
func fastRetry() RetryConfig {
	return RetryConfig{
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		MaxElapsedTime:      2 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0,
	}
}

func TestResilientRetriesTransientFailure(t *testing.T) {
	var calls int32
	inner := Func(func(ctx context.Context, req Request) (Response, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return Response{}, errors.New("transient")
		}
		return Response{Output: "recovered"}, nil
	})

	cb := NewBreakerRegistry().Get("test")
	r := WithResilience(inner, cb, fastRetry())

	resp, err := r.Run(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.Output != "recovered" {
		t.Errorf("Output = %q, want %q", resp.Output, "recovered")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("inner runner called %d times, want 3", got)
	}
}

func TestResilientStopsOnCancel(t *testing.T) {
	var calls int32
	inner := Func(func(ctx context.Context, req Request) (Response, error) {
		atomic.AddInt32(&calls, 1)
		return Response{}, errors.New("always failing")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cb := NewBreakerRegistry().Get("test")
	r := WithResilience(inner, cb, fastRetry())

	_, err := r.Run(ctx, Request{Prompt: "p"})
	if err == nil {
		t.Fatal("Run() succeeded with a cancelled context")
	}
	if got := atomic.LoadInt32(&calls); got > 0 {
		t.Errorf("inner runner called %d times after cancellation, want 0", got)
	}
}

func TestResilientDoesNotRetryWhilstOpen(t *testing.T) {
	var calls int32
	inner := Func(func(ctx context.Context, req Request) (Response, error) {
		atomic.AddInt32(&calls, 1)
		return Response{}, errors.New("agent down")
	})

	cb := NewBreakerRegistry().Get("test")
	// Trip the breaker directly.
	for i := 0; i < 5; i++ {
		cb.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", cb.State())
	}

	r := WithResilience(inner, cb, fastRetry())
	start := time.Now()
	_, err := r.Run(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("Run() error = %v, want ErrOpenState", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("inner runner reached through an open breaker")
	}
	// Permanent: no backoff loop against an open circuit.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run() took %v against an open breaker, want immediate return", elapsed)
	}
}

func TestBreakerTripsOnConsecutiveFailures(t *testing.T) {
	cb := NewBreakerRegistry().Get("flaky")

	for i := 0; i < 4; i++ {
		cb.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
		if cb.State() != gobreaker.StateClosed {
			t.Fatalf("breaker opened after %d failures, want 5", i+1)
		}
	}

	cb.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("breaker state = %v after 5 consecutive failures, want open", cb.State())
	}
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	cb := NewBreakerRegistry().Get("cancelled")

	// Timeouts and cancellations are caller-side outcomes and must not
	// count against agent health.
	for i := 0; i < 20; i++ {
		cb.Execute(func() (interface{}, error) { return nil, context.Canceled })
		cb.Execute(func() (interface{}, error) { return nil, context.DeadlineExceeded })
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("breaker state = %v, want closed", cb.State())
	}
}

func TestBreakerRegistryPerKind(t *testing.T) {
	reg := NewBreakerRegistry()

	a1 := reg.Get("claude")
	a2 := reg.Get("claude")
	b := reg.Get("other")

	if a1 != a2 {
		t.Error("Get returned distinct breakers for the same kind")
	}
	if a1 == b {
		t.Error("Get returned a shared breaker for distinct kinds")
	}
}

func TestResilientCloseClosesInner(t *testing.T) {
	closed := false
	inner := closerFunc{fn: func() { closed = true }}

	r := WithResilience(inner, NewBreakerRegistry().Get("test"), fastRetry())
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !closed {
		t.Error("inner runner not closed")
	}
}

type closerFunc struct {
	fn func()
}

func (c closerFunc) Run(ctx context.Context, req Request) (Response, error) {
	return Response{}, nil
}

func (c closerFunc) Close() error {
	c.fn()
	return nil
}
