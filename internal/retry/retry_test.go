package retry

import (
	"context"
	"testing"
	"time"

	"github.com/freighter-dev/freighter/internal/errors"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	var calls int
	err := fastPolicy().Do(context.Background(), func(attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	var attempts []int
	err := fastPolicy().Do(context.Background(), func(attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return errors.NewPublishError("flaky", errors.ErrTransientNetwork).WithRetryable(true)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(attempts) != 3 || attempts[0] != 1 || attempts[2] != 3 {
		t.Errorf("attempts = %v", attempts)
	}
}

func TestDoStopsOnFatalError(t *testing.T) {
	fatal := errors.NewPublishError("version already published", errors.ErrRegistryRejected)
	var calls int
	err := fastPolicy().Do(context.Background(), func(attempt int) error {
		calls++
		return fatal
	})
	if !errors.Is(err, errors.ErrRegistryRejected) {
		t.Fatalf("expected fatal error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("fatal error retried: calls = %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	var calls int
	err := fastPolicy().Do(context.Background(), func(attempt int) error {
		calls++
		return errors.NewPublishError("still down", errors.ErrTransientNetwork).WithRetryable(true)
	})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	err := fastPolicy().Do(ctx, func(attempt int) error {
		calls++
		return nil
	})
	if !errors.Is(err, errors.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("op ran on canceled context: calls = %d", calls)
	}
}

func TestDoCancellationDuringBackoff(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(attempt int) error {
			return errors.NewPublishError("flaky", errors.ErrTransientNetwork).WithRetryable(true)
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, errors.ErrCanceled) {
			t.Fatalf("expected ErrCanceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not observe cancellation during backoff")
	}
}

func TestDelayGrowthAndCap(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	if got := p.delay(1); got != time.Second {
		t.Errorf("delay(1) = %v", got)
	}
	if got := p.delay(2); got != 2*time.Second {
		t.Errorf("delay(2) = %v", got)
	}
	if got := p.delay(4); got != 5*time.Second {
		t.Errorf("delay(4) = %v, want cap", got)
	}
}

func TestDelayJitterStaysInBounds(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Jitter: 0.5}
	for i := 0; i < 100; i++ {
		d := p.delay(1)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay out of bounds: %v", d)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	if !errors.Is(err, errors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.IsRetryable(err) {
		t.Error("timeouts should be retryable")
	}
}

func TestWithTimeoutZeroRunsDirect(t *testing.T) {
	err := WithTimeout(context.Background(), 0, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Error("zero timeout must not add a deadline")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTimeout: %v", err)
	}
}
