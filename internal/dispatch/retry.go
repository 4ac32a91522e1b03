package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
)

const (
	defaultMaxAttempts  = 4
	defaultBaseDelay    = 200 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc is one attempt of a side-effect call.
type RetryableFunc func(ctx context.Context) error

// AttemptFunc observes every failed attempt.
type AttemptFunc func(attempt int, err error)

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	onFailure    AttemptFunc
}

// RetryWithExponentialBackoff runs fn until it succeeds, fails permanently, or
// maxAttempts is reached. Delays grow as baseDelay * 2^(attempt-1) plus jitter.
//
// Retry schedule (default): 0, 200 ms, 400 ms, 800 ms (with 30% jitter).
func RetryWithExponentialBackoff(ctx context.Context, fn RetryableFunc, options ...RetryOption) error {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec // jitter only
			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if config.onFailure != nil {
			config.onFailure(attempt+1, lastErr)
		}
		if !isRetryableError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// isRetryableError reports whether another attempt could succeed. Missing
// records, bad input and cancellation will not change on retry.
func isRetryableError(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrInvalidArgument),
		errors.Is(err, model.ErrUnauthenticated):
		return false
	}
	return true
}

// RetryOption configures retry behavior.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		config.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		config.baseDelay = delay
		return nil
	}
}

// WithJitterFactor sets the jitter as a fraction of the backoff delay.
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		config.jitterFactor = factor
		return nil
	}
}

// OnFailure registers a callback invoked after each failed attempt.
func OnFailure(fn AttemptFunc) RetryOption {
	return func(config *retryConfig) error {
		config.onFailure = fn
		return nil
	}
}
