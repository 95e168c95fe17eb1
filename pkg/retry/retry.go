package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	MaxTotalTimeout time.Duration
}

// DefaultConfig returns the configuration used when dialing backing services at startup
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     10,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		BackoffFactor:   2.0,
		MaxTotalTimeout: 60 * time.Second,
	}
}

// NotifyFunc is called after each failed attempt with the delay before the next one
type NotifyFunc func(attempt int, err error, nextDelay time.Duration)

// Do runs fn with exponential backoff until it succeeds, the attempts are
// exhausted, or ctx is done. Request paths never use this; it exists for
// connecting to Postgres and Redis during startup.
func Do(ctx context.Context, cfg Config, serviceName string, fn func() error, notify NotifyFunc) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialDelay
	policy.MaxInterval = cfg.MaxDelay
	policy.Multiplier = cfg.BackoffFactor
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = cfg.MaxTotalTimeout

	attempt := 0
	operation := func() error {
		attempt++
		return fn()
	}

	onFailure := func(err error, next time.Duration) {
		if notify != nil {
			notify(attempt, err, next)
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(cfg.MaxAttempts-1)), ctx)
	if err := backoff.RetryNotify(operation, b, onFailure); err != nil {
		return fmt.Errorf("%s: gave up after %d attempts: %w", serviceName, attempt, err)
	}
	return nil
}

// Permanent marks err as non-retryable
func Permanent(err error) error {
	return backoff.Permanent(err)
}
