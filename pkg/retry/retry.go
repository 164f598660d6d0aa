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

// DefaultConfig returns the configuration used for dependency startup.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     10,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		BackoffFactor:   2.0,
		MaxTotalTimeout: 60 * time.Second,
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func (c Config) policy(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.InitialDelay
	eb.MaxInterval = c.MaxDelay
	eb.Multiplier = c.BackoffFactor
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = c.MaxTotalTimeout

	var b backoff.BackOff = eb
	if c.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(c.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// Do executes fn with exponential backoff until it succeeds, returns a
// permanent error, or the attempt or time budget runs out.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return DoWithLog(ctx, cfg, "operation", fn, nil)
}

// DoWithLog is Do with a callback invoked before each wait.
func DoWithLog(ctx context.Context, cfg Config, serviceName string, fn func() error, logFn func(attempt int, err error, nextDelay time.Duration)) error {
	attempt := 0
	op := func() error {
		attempt++
		return fn()
	}
	notify := func(err error, next time.Duration) {
		if logFn != nil {
			logFn(attempt, err, next)
		}
	}

	if err := backoff.RetryNotify(op, cfg.policy(ctx), notify); err != nil {
		return fmt.Errorf("%s: gave up after %d attempts: %w", serviceName, attempt, err)
	}
	return nil
}
