package pricefeed

import (
	"context"
	"time"
)

// BackoffPolicy drives retry pacing for provider failures: exponential
// doubling from Base up to Cap, reset on success.
type BackoffPolicy struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoff matches the provider retry contract: base 1s, cap 30s.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{Base: time.Second, Cap: 30 * time.Second}
}

// Delay returns the wait before the given attempt (attempt 0 = first retry).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// Sleep waits for the attempt's delay or until ctx is cancelled.
// Returns false when the context ended first.
func (p BackoffPolicy) Sleep(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
