// Package resilience retries the pipeline's outbound calls, the Anthropic
// API and RSS feed fetches, with exponential backoff. Both callers are
// rate-limited upstream; retries here only absorb transient failures.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second

	// Each retry doubles the delay, then ±25% jitter spreads concurrent
	// article workers that failed together.
	backoffMultiplier = 2.0
	jitterFraction    = 0.25
)

// RetryConfig bounds the retry loop. Zero values take the defaults.
type RetryConfig struct {
	// MaxAttempts counts the first try; 1 disables retries.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry; it doubles per
	// attempt up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// ShouldRetry classifies an error as worth retrying. Nil means
	// IsTransient. The AI classifier installs its own check that maps
	// SDK errors through IsTransientHTTPStatus.
	ShouldRetry func(err error) bool

	// OnRetry runs before each backoff sleep; see RetryLogger.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig is the policy both outbound callers start from.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    defaultMaxAttempts,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = IsTransient
	}
	return cfg
}

// DoVal runs fn until it succeeds, fails non-transiently, exhausts
// MaxAttempts, or the context ends. The last error is returned as-is so
// callers can inspect it (the classifier falls back to keyword rules on it).
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !cfg.ShouldRetry(err) || attempt == cfg.MaxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		if !sleep(ctx, backoff(attempt, cfg)) {
			break
		}
	}
	return zero, lastErr
}

// backoff returns the delay after the given attempt (1-based), doubled per
// attempt, capped, with jitter applied.
func backoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff)
	for i := 1; i < attempt; i++ {
		delay *= backoffMultiplier
		if delay >= float64(cfg.MaxBackoff) {
			delay = float64(cfg.MaxBackoff)
			break
		}
	}

	delay += delay * jitterFraction * (rand.Float64()*2 - 1)
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RetryLogger returns an OnRetry hook that logs each retry with the calling
// service and operation, matching the pipeline's structured log fields.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("transient failure, retrying",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
