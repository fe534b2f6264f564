package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// ErrNonRetryable wraps the error of an attempt that was not retried
// because it was classified as permanent.
var ErrNonRetryable = errors.New("non-retryable error")

// RetryableFunc is one attempt.
type RetryableFunc func(ctx context.Context) error

// Retryer runs a function until it succeeds, the attempts run out, or the
// context ends.
type Retryer struct {
	config Config
}

// NewRetryer validates config and creates a Retryer.
func NewRetryer(config Config) (*Retryer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	return &Retryer{config: config}, nil
}

// Do calls fn with retries. The last attempt's error is wrapped in the
// returned error.
func (r *Retryer) Do(ctx context.Context, fn RetryableFunc) error {
	if !r.config.Enabled {
		return fn(ctx)
	}

	attempts := 0
	for {
		attempts++

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !r.isRetryableError(err) {
			return fmt.Errorf("%w: %w", ErrNonRetryable, err)
		}

		if r.config.MaxAttempts > 0 && attempts >= r.config.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, err)
		}

		if ctx.Err() != nil {
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		}

		delay := r.calculateDelay(attempts)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempts, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

func (r *Retryer) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.BackoffStrategy {
	case BackoffLinear:
		delay = r.config.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		multiplier := math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
		delay = time.Duration(float64(r.config.InitialDelay) * multiplier)
	default:
		delay = r.config.InitialDelay
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter > 0 {
		delay += time.Duration(float64(delay) * r.config.Jitter * (rand.Float64()*2 - 1))
		if delay < 0 {
			delay = r.config.InitialDelay
		}
	}

	return delay
}

func (r *Retryer) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if r.config.Retryable != nil && !r.config.Retryable(err) {
		return false
	}

	if len(r.config.RetryableErrors) == 0 {
		return true
	}

	msg := err.Error()
	for _, pattern := range r.config.RetryableErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
