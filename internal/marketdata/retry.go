package marketdata

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// errRateLimited marks provider responses that should be retried with
// backoff (HTTP 429 and Yahoo's "Edge: Too Many Requests" text bodies).
var errRateLimited = errors.New("provider rate limited")

// RetryPolicy controls the backoff loop around rate-limited provider calls:
// delay = BaseDelay * 2^attempt + random jitter in [0, MaxJitter).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxJitter:   time.Second,
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if p.MaxJitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	return d
}

// withRetry runs fn, retrying on rate-limit errors until the policy is
// exhausted. Other errors are returned immediately; the ladder above this
// decides what to degrade to.
func withRetry(ctx context.Context, policy RetryPolicy, logger *slog.Logger, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, errRateLimited) {
			return err
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}
		delay := policy.backoff(attempt)
		logger.Warn("provider rate limited, backing off",
			"op", op, "attempt", attempt+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
