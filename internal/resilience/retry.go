package resilience

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/clock"
)

// RetryConfig describes an exponential backoff shape, scaled to the
// low-latency expectations of an interactive file organizer.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig is maxRetries=3, initialDelay=1s, maxDelay=5s per
// the resilience layer's retry contract.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:   3,
	InitialDelay: 1 * time.Second,
	MaxDelay:     5 * time.Second,
}

// recoverableSubstrings classifies provider errors by matching on
// known transient phrases in the error string, since provider SDKs
// don't expose a typed "retryable" error.
var recoverableSubstrings = []string{
	"rate_limit",
	"429",
	"too many requests",
	"overloaded",
	"connection reset",
	"timeout",
	"temporarily unavailable",
}

// IsRecoverable reports whether err looks like a transient provider
// error worth retrying.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if IsNonTransient(err) {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, s := range recoverableSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// FallbackFunc is invoked once retries on the primary attempt are
// exhausted, giving the caller a chance to retry on a CPU-only model
// variant rather than fail outright. A nil FallbackFunc disables
// fallback.
type FallbackFunc func(ctx context.Context) (any, error)

// Retry calls fn with exponential backoff on recoverable errors. If
// all attempts fail and fallback is non-nil, fallback is tried once as
// a last resort (e.g. retrying on a CPU backend after GPU attempts
// were exhausted).
func Retry(ctx context.Context, clk clock.Clock, cfg RetryConfig, fn func(ctx context.Context) (any, error), fallback FallbackFunc) (any, error) {
	if clk == nil {
		clk = clock.New()
	}
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRecoverable(err) {
			return nil, err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-clk.After(delay):
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	if fallback != nil {
		result, err := fallback(ctx)
		if err == nil {
			return result, nil
		}
		return nil, fmt.Errorf("fallback after %d retries (last error: %v): %w", cfg.MaxRetries, lastErr, err)
	}

	return nil, fmt.Errorf("exhausted %d retries: %w", cfg.MaxRetries, lastErr)
}
