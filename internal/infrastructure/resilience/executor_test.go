package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{Retry: fastRetry(3)})

	attempts := 0
	errTemp := errors.New("djp: 503")
	err := exec.Execute(context.Background(), "djp.fetch", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errTemp), RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{Retry: fastRetry(3)})

	attempts := 0
	errPermanent := errors.New("djp: 404")
	err := exec.Execute(context.Background(), "djp.fetch", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteStopsRetryingWhenContextIsDone(t *testing.T) {
	exec := NewExecutor(Config{Retry: RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Second,
		Multiplier:     1,
	}})
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	errTemp := errors.New("timeout")
	err := exec.Execute(ctx, "djp.fetch", func(context.Context) error {
		attempts++
		cancel()
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	var transitions []gobreaker.State
	exec := NewExecutor(Config{
		Retry: fastRetry(1),
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      2,
			FailureRatio:     0.5,
			OpenTimeout:      50 * time.Millisecond,
			HalfOpenMaxCalls: 1,
		},
	}, WithStateObserver(func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}))

	errTemp := errors.New("connection refused")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "djp.fetch", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected failure on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "djp.fetch", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Fatalf("expected a single transition to open, got %v", transitions)
	}
}

func TestExecuteValueReturnsResult(t *testing.T) {
	exec := NewExecutor(Config{Retry: fastRetry(2)})

	calls := 0
	got, err := ExecuteValue(context.Background(), exec, "djp.fetch", func(context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("reset by peer")
		}
		return []byte("<resValidateFakturPm/>"), nil
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "<resValidateFakturPm/>" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestRetryPolicyWaitIsCapped(t *testing.T) {
	p := RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := p.wait(i + 1); got != w {
			t.Fatalf("wait(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := Config{Retry: RetryPolicy{InitialBackoff: 2 * time.Second}}.normalize()
	def := DefaultConfig()

	if cfg.Retry.MaxAttempts != def.Retry.MaxAttempts {
		t.Fatalf("unexpected attempts %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.MaxBackoff != 2*time.Second {
		t.Fatalf("max backoff must not be below initial, got %v", cfg.Retry.MaxBackoff)
	}
	if cfg.Breaker.OpenTimeout != def.Breaker.OpenTimeout || cfg.Breaker.Enabled {
		t.Fatalf("unexpected breaker policy %+v", cfg.Breaker)
	}
}
