// Package ratelimit paces outbound feed requests and retries quota errors
// with exponential backoff.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter wraps x/time/rate with backoff state for quota errors.
type RateLimiter struct {
	limiter           *rate.Limiter
	mu                sync.Mutex
	consecutiveErrors int
	currentDelay      time.Duration
	config            *Config
}

// Config holds rate limiter configuration.
type Config struct {
	RequestDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	MaxAttempts       int
}

// DefaultConfig returns defaults tuned for Apps Script endpoints: they
// tolerate roughly two requests per second per deployment and answer 429
// when a quota trips.
func DefaultConfig() *Config {
	return &Config{
		RequestDelay:      500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          30 * time.Second,
		MaxAttempts:       4,
	}
}

// NewRateLimiter creates a rate limiter (nil config uses defaults).
func NewRateLimiter(cfg *Config) *RateLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rps := float64(time.Second) / float64(cfg.RequestDelay)

	return &RateLimiter{
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		currentDelay: cfg.RequestDelay,
		config:       cfg,
	}
}

// Wait blocks until the limiter allows the next request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// HandleError inspects an error and reports whether it is retryable quota
// pressure, and if so how long to back off before the next attempt.
func (r *RateLimiter) HandleError(err error) (shouldRetry bool, waitTime time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota") {
		r.consecutiveErrors++

		waitTime = time.Duration(math.Min(
			float64(r.currentDelay)*math.Pow(r.config.BackoffMultiplier, float64(r.consecutiveErrors-1)),
			float64(r.config.MaxDelay),
		))

		// slow the steady-state rate down as well
		if waitTime > r.currentDelay {
			r.currentDelay = waitTime
			rps := float64(time.Second) / float64(waitTime)
			r.limiter.SetLimit(rate.Limit(rps))
		}

		return r.consecutiveErrors < r.config.MaxAttempts, waitTime
	}

	return false, 0
}

// Success resets the backoff state after a request goes through.
func (r *RateLimiter) Success() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.consecutiveErrors > 0 {
		r.consecutiveErrors = 0
		r.currentDelay = r.config.RequestDelay
		rps := float64(time.Second) / float64(r.config.RequestDelay)
		r.limiter.SetLimit(rate.Limit(rps))
	}
}

// ExecuteWithRetry runs fn under the limiter, retrying quota errors with
// backoff. Non-quota errors return immediately.
func (r *RateLimiter) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		if err := r.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		err := fn()
		if err == nil {
			r.Success()
			return nil
		}

		shouldRetry, waitTime := r.HandleError(err)
		if !shouldRetry {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded", r.config.MaxAttempts)
}
