package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "fetch", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		calls++
		return Permanent(errors.New("404"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call for permanent error, got %d", calls)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "fetch", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("503")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryHonoursRetryable(t *testing.T) {
	calls := 0
	stop := errors.New("bad request")
	err := Retry(context.Background(), "fetch", RetryConfig{
		MaxAttempts:  4,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, stop) },
	}, func() error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected stop error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestCircuitBreakerOpensAndReportsState(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("llm", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
		OnStateChange:    func(_ string, to State) { transitions = append(transitions, to) },
	})
	fail := func() error { return errors.New("boom") }
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open, got %s", cb.GetState())
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	cb.Reset()
	if len(transitions) != 2 || transitions[0] != StateOpen || transitions[1] != StateClosed {
		t.Fatalf("unexpected transitions %v", transitions)
	}
}

func TestCircuitBreakerTrialCall(t *testing.T) {
	clock := time.Date(2025, 3, 14, 7, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("llm", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	cb.now = func() time.Time { return clock }

	_ = cb.Execute(func() error { return errors.New("503 from provider") })
	snap := cb.Snapshot()
	if snap.State != StateOpen || snap.Failures != 1 || !snap.RetryAt.Equal(clock.Add(time.Minute)) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	clock = clock.Add(30 * time.Second)
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected suspension during cool-down, got %v", err)
	}

	// A failed trial reopens and restarts the cool-down.
	clock = clock.Add(31 * time.Second)
	_ = cb.Execute(func() error { return errors.New("still failing") })
	if got := cb.Snapshot(); got.State != StateOpen || !got.RetryAt.Equal(clock.Add(time.Minute)) {
		t.Fatalf("expected reopened breaker, got %+v", got)
	}

	clock = clock.Add(time.Minute)
	calls := 0
	if err := cb.Execute(func() error { calls++; return nil }); err != nil || calls != 1 {
		t.Fatalf("expected trial call to run, err=%v calls=%d", err, calls)
	}
	if got := cb.Snapshot(); got.State != StateClosed || got.Failures != 0 {
		t.Fatalf("expected closed after successful trial, got %+v", got)
	}
}

func TestCallTimesOut(t *testing.T) {
	_, err := Call(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	v, err := Call(context.Background(), time.Second, "fast", func(ctx context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || v != 7 {
		t.Fatalf("expected 7, got %d (%v)", v, err)
	}
}
