package papersources

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests to one upstream API. On top of the token bucket
// it supports a shared cooldown: after the upstream answers 429, every caller
// holds off until the cooldown ends, not only the one that was throttled.
type RateLimiter struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	resumeAt time.Time
}

// NewRateLimiter creates a limiter allowing ratePerSecond sustained requests
// with bursts of up to burst. arXiv, for instance, wants NewRateLimiter(0.33, 1).
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait blocks until any cooldown has passed and a token is available.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if d := r.cooldownRemaining(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may go out now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	if r.cooldownRemaining() > 0 {
		return false
	}
	return r.limiter.Allow()
}

// Pause starts a cooldown of d. An existing longer cooldown is kept.
func (r *RateLimiter) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	until := time.Now().Add(d)
	r.mu.Lock()
	if until.After(r.resumeAt) {
		r.resumeAt = until
	}
	r.mu.Unlock()
}

func (r *RateLimiter) cooldownRemaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Until(r.resumeAt)
}
