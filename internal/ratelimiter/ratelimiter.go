// Package ratelimiter throttles outbound requests to the store.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by every request of one client.
//
// A nil *Limiter never throttles, which lets callers leave throttling off
// without branching at each call site.
//
// Thread safety:
// All methods are safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerSecond sustained and burst
// requests at once.
//
// Special cases:
//   - requestsPerSecond <= 0: no throttling
//   - burst <= 0: burst defaults to max(1, requestsPerSecond)
func New(requestsPerSecond float64, burst int) *Limiter {
	if requestsPerSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until the request may proceed or ctx is done.
//
// Returns the context error if ctx ends first, or an error if the wait
// would outlast the context deadline.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// Unlimited reports whether the limiter never throttles.
func (l *Limiter) Unlimited() bool {
	return l == nil || l.limiter.Limit() == rate.Inf
}

// SetLimit changes the sustained rate. A non-positive rate disables throttling.
func (l *Limiter) SetLimit(requestsPerSecond float64) {
	if requestsPerSecond <= 0 {
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.limiter.SetLimit(rate.Limit(requestsPerSecond))
	if l.limiter.Burst() < 1 {
		l.limiter.SetBurst(1)
	}
}
