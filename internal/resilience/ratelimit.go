package resilience

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter throttles calls to a single model to a maximum requests
// per minute, built on golang.org/x/time/rate instead of a hand-rolled
// refill loop.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a RateLimiter allowing at most rpm requests
// per minute, with a burst of 1 so requests are paced rather than
// allowed to spike.
func NewRateLimiter(rpm int) *RateLimiter {
	if rpm <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	perSecond := rate.Limit(float64(rpm) / 60.0)
	return &RateLimiter{limiter: rate.NewLimiter(perSecond, 1)}
}

// Wait blocks until a request may proceed or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("resilience: rate limit wait: %w", err)
	}
	return nil
}
