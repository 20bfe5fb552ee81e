// Package retry provides bounded exponential backoff for idempotent operations.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds retry configuration
type Config struct {
	MaxRetries  int           // Maximum number of retry attempts after the first call
	BaseDelay   time.Duration // Initial delay between retries
	MaxDelay    time.Duration // Maximum delay between retries
	Multiplier  float64       // Multiplier for exponential backoff
	JitterRatio float64       // Jitter ratio (0-1) to add randomness
}

// DefaultConfig returns defaults suited to blob store reads
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		JitterRatio: 0.1,
	}
}

// None returns a config that performs exactly one attempt
func None() Config {
	return Config{MaxRetries: 0}
}

// RetryableError wraps an error that should trigger a retry
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var retryable *RetryableError
	return errors.As(err, &retryable)
}

// Retryable wraps an error to indicate it should be retried
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Do executes fn, retrying errors marked Retryable with exponential backoff.
// The returned error never carries the RetryableError wrapper.
func Do[T any](ctx context.Context, cfg Config, log logrus.FieldLogger, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, unwrap(err)
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.calculateDelay(attempt)
		if log != nil {
			log.WithFields(logrus.Fields{
				"attempt":     attempt + 1,
				"max_retries": cfg.MaxRetries,
				"delay":       delay,
			}).WithError(err).Debug("retrying after error")
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, unwrap(lastErr)
}

func unwrap(err error) error {
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return retryable.Err
	}
	return err
}

// calculateDelay computes the delay for a given attempt with jitter
func (c Config) calculateDelay(attempt int) time.Duration {
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(c.BaseDelay) * math.Pow(multiplier, float64(attempt))

	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	if c.JitterRatio > 0 {
		jitter := delay * c.JitterRatio * (rand.Float64()*2 - 1)
		delay += jitter
	}

	return time.Duration(delay)
}
