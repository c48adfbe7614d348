package dial

import (
	"context"
	"time"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/logger"
)

// RetryController decides whether and when a failed provider operation is
// attempted again. Transient failures get maxRetries extra attempts with
// exponential backoff (base doubled per attempt, capped); a provider
// retry-after hint overrides the computed delay when it is longer.
// Terminal and unclassified failures get exactly one attempt.
type RetryController struct {
	maxRetries int
	base       time.Duration
	cap        time.Duration

	sleep func(ctx context.Context, d time.Duration) error // injectable for tests
}

// NewRetryController wires a controller from dialer config.
func NewRetryController(cfg am.DialerConfig) *RetryController {
	return &RetryController{
		maxRetries: cfg.MaxRetries,
		base:       time.Duration(cfg.BackoffBaseMS) * time.Millisecond,
		cap:        time.Duration(cfg.BackoffCapMS) * time.Millisecond,
		sleep:      sleepCtx,
	}
}

// Do runs op until it succeeds, fails terminally, exhausts the retry
// budget, or the context is cancelled. Returns the number of attempts
// made alongside the final error.
func (c *RetryController) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return attempts, errors.Wrap(errors.ErrCancelled, "retry loop stopped")
		}

		attempts++
		err := op(ctx)
		if err == nil {
			return attempts, nil
		}
		if !errors.IsTransient(err) {
			return attempts, err
		}
		if attempts > c.maxRetries {
			return attempts, errors.Wrapf(err, "giving up after %d attempts", attempts)
		}

		delay := c.backoff(attempts - 1)
		if hint, ok := errors.RetryAfter(err); ok && hint > delay {
			delay = hint
		}
		logger.Warnw("provider call failed, will retry",
			"attempt", attempts, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return attempts, errors.Wrap(errors.ErrCancelled, "retry loop stopped")
		}
	}
}

// backoff returns base*2^n capped.
func (c *RetryController) backoff(n int) time.Duration {
	d := c.base
	for i := 0; i < n; i++ {
		d *= 2
		if d >= c.cap {
			return c.cap
		}
	}
	if d > c.cap {
		return c.cap
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
