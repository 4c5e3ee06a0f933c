package retry

import (
	"context"
	"fmt"
	"time"

	"portfolio_dashboard/internal/domain/entity"
)

const (
	// DefaultMaxAttempts is the total number of attempts for a call that
	// keeps failing with retryable errors.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay seeds the exponential backoff.
	DefaultBaseDelay = 500 * time.Millisecond
)

// Policy retries an operation with exponential backoff: the wait before
// attempt n+1 is BaseDelay * 2^n, capped at MaxDelay. A terminal error
// propagates immediately without consuming an attempt budget; exhausting the
// budget yields a terminal failure wrapping the last cause.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy creates a Policy, falling back to defaults for non-positive
// parameters.
func NewPolicy(maxAttempts int, baseDelay time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    30 * time.Second,
		sleep:       sleepCtx,
	}
}

// Do invokes op until it succeeds, fails terminally, the attempt budget is
// exhausted, or the context is done.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if p.sleep == nil {
		p.sleep = sleepCtx
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, p.delay(attempt-1)); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !entity.IsRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, lastErr)
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = DefaultBaseDelay
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
