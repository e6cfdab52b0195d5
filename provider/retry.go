package provider

import (
	"context"
	"math"
	"time"
)

// DefaultMaxRetries is the retry ceiling when none is configured.
const DefaultMaxRetries = 3

// RetryPolicy configures exponential backoff for rate-limit and connectivity
// failures.
type RetryPolicy struct {
	MaxRetries        int           // retries after the first attempt
	BaseDelay         time.Duration // delay before the first retry
	MaxDelay          time.Duration // upper bound for a single delay
	BackoffMultiplier float64
	OnRetry           func(err *Error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy waits 1s, 2s, 4s before giving up.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        DefaultMaxRetries,
		BaseDelay:         time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Delay returns the wait before retry number attempt (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 2.0
	}
	delay := float64(p.BaseDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 {
		delay = math.Min(delay, float64(p.MaxDelay))
	}
	return time.Duration(delay)
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
