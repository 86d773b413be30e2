package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Default retry configuration constants.
const (
	// DefaultMaxRetries is the default number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the delay before the first retry.
	DefaultBaseDelay = time.Second

	// DefaultMaxDelay caps any single delay.
	DefaultMaxDelay = 30 * time.Second

	// MaxJitterFactor is the maximum allowed jitter factor.
	MaxJitterFactor = 1.0
)

// Config contains retry configuration parameters.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// Negative values mean no retries.
	MaxRetries int

	// BaseDelay is the delay before the first retry. Default is 1s.
	BaseDelay time.Duration

	// MaxDelay caps the delay. Default is 30s.
	MaxDelay time.Duration

	// JitterFactor (0.0 to 1.0) adds up to that fraction of the delay at
	// random. Default is 0, which keeps delays exact.
	JitterFactor float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// GetMaxRetries returns the effective number of retries.
func (c *Config) GetMaxRetries() int {
	if c == nil {
		return DefaultMaxRetries
	}
	if c.MaxRetries < 0 {
		return 0
	}
	return c.MaxRetries
}

// GetBaseDelay returns the effective base delay.
func (c *Config) GetBaseDelay() time.Duration {
	if c == nil || c.BaseDelay <= 0 {
		return DefaultBaseDelay
	}
	return c.BaseDelay
}

// GetMaxDelay returns the effective delay cap.
func (c *Config) GetMaxDelay() time.Duration {
	if c == nil || c.MaxDelay <= 0 {
		return DefaultMaxDelay
	}
	return c.MaxDelay
}

// GetJitterFactor returns the effective jitter factor.
func (c *Config) GetJitterFactor() float64 {
	if c == nil || c.JitterFactor <= 0 {
		return 0
	}
	if c.JitterFactor > MaxJitterFactor {
		return MaxJitterFactor
	}
	return c.JitterFactor
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func() error

// ShouldRetryFunc determines if an error should trigger a retry.
type ShouldRetryFunc func(error) bool

// OnRetryFunc is called before each retry attempt.
type OnRetryFunc func(attempt int, err error, delay time.Duration)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options contains optional retry behavior configuration.
type Options struct {
	// ShouldRetry determines if an error should trigger a retry.
	// If nil, IsRetryable is used.
	ShouldRetry ShouldRetryFunc

	// OnRetry is called before each retry attempt.
	OnRetry OnRetryFunc

	// Sleep replaces the timer-based wait.
	Sleep SleepFunc

	// Operation labels the retry metrics.
	Operation string
}

// Do executes fn, retrying failures the options consider retryable.
func Do(ctx context.Context, cfg *Config, fn RetryableFunc, opts *Options) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if opts == nil {
		opts = &Options{}
	}

	shouldRetry := opts.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = timerSleep
	}
	operation := opts.Operation
	if operation == "" {
		operation = "default"
	}

	maxRetries := cfg.GetMaxRetries()
	baseDelay := cfg.GetBaseDelay()
	maxDelay := cfg.GetMaxDelay()
	jitterFactor := cfg.GetJitterFactor()

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				RecordRetrySuccess(operation)
			}
			RecordRetryDuration(operation, true, time.Since(start).Seconds())
			return nil
		}

		if !shouldRetry(lastErr) {
			RecordRetryDuration(operation, false, time.Since(start).Seconds())
			return lastErr
		}

		if attempt == maxRetries {
			break
		}

		delay := CalculateBackoff(attempt, baseDelay, maxDelay, jitterFactor)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, lastErr, delay)
		}
		RecordRetryAttempt(operation, attempt+1)
		RecordBackoffDuration(operation, attempt+1, delay.Seconds())

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	RecordRetryFailure(operation)
	RecordRetryDuration(operation, false, time.Since(start).Seconds())
	return lastErr
}

// CalculateBackoff returns baseDelay * 2^attempt plus jitter, capped at maxDelay.
func CalculateBackoff(attempt int, baseDelay, maxDelay time.Duration, jitterFactor float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := float64(baseDelay) * math.Pow(2, float64(attempt))

	if jitterFactor > 0 {
		//nolint:gosec // G404: jitter for retry timing is not security-sensitive
		backoff += backoff * jitterFactor * rand.Float64()
	}

	if backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}

	return time.Duration(backoff)
}

func timerSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
