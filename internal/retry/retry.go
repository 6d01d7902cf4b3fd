// Package retry implements bounded exponential backoff for transient
// failures. Only errors classified retryable by the error taxonomy are
// retried; fatal errors and context cancellation stop immediately.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/freighter-dev/freighter/internal/errors"
)

// Policy controls retry behavior for one class of operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay after the first failed attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// Jitter is the fraction of the delay randomized in both directions,
	// in [0, 1]. Zero disables jitter.
	Jitter float64
}

// DefaultPolicy matches the defaults used for registry publishing.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		Jitter:      0.2,
	}
}

// Do runs op until it succeeds, fails fatally, exhausts attempts, or the
// context is canceled. The attempt number passed to op is 1-based. The
// last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, op func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(errors.ErrCanceled, err)
		}

		last = op(attempt)
		if last == nil {
			return nil
		}
		if !errors.IsRetryable(last) {
			return last
		}
		if attempt == attempts {
			break
		}

		select {
		case <-time.After(p.delay(attempt)):
		case <-ctx.Done():
			return errors.Join(errors.ErrCanceled, ctx.Err())
		}
	}
	return last
}

// delay returns the backoff before attempt+1: base doubled per failed
// attempt, capped, with optional jitter.
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d += time.Duration((rand.Float64()*2 - 1) * spread)
		if d < 0 {
			d = 0
		}
	}
	return d
}

// WithTimeout runs op under a per-operation timeout. A zero timeout runs
// op with the parent context unchanged.
func WithTimeout(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := op(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(errors.ErrTimeout, err)
	}
	return err
}
