// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package auth

import (
	"sync"
	"time"

	"github.com/samber/oops"
)

// RatePolicy is the attempt budget for one route.
type RatePolicy struct {
	MaxAttempts int
	Window      time.Duration
}

// Default per-route policies, matching the gateway's published limits.
var DefaultRatePolicies = map[string]RatePolicy{
	"login":           {MaxAttempts: 5, Window: time.Minute},
	"forgot-password": {MaxAttempts: 3, Window: time.Minute},
	"send-otp":        {MaxAttempts: 3, Window: time.Minute},
}

// sweepInterval bounds how often idle keys are discarded.
const sweepInterval = time.Minute

type rateKey struct {
	route  string
	client string
}

// SlidingWindowLimiter admits calls per (route, client) by counting
// attempts inside a trailing window. State is in-memory and advisory:
// losing it on restart only resets the counters.
type SlidingWindowLimiter struct {
	mu        sync.Mutex
	policies  map[string]RatePolicy
	attempts  map[rateKey][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewSlidingWindowLimiter creates a limiter with the given per-route
// policies. Routes without a policy are always admitted.
func NewSlidingWindowLimiter(policies map[string]RatePolicy) *SlidingWindowLimiter {
	if policies == nil {
		policies = DefaultRatePolicies
	}
	return &SlidingWindowLimiter{
		policies: policies,
		attempts: make(map[rateKey][]time.Time),
		now:      time.Now,
	}
}

// WithClock overrides the limiter's clock. For tests.
func (l *SlidingWindowLimiter) WithClock(now func() time.Time) *SlidingWindowLimiter {
	l.now = now
	return l
}

// Allow records an attempt and admits it unless the client already spent
// the route's budget inside the window. Denial wraps ErrRateLimited and
// carries the retry-after hint; no downstream work happens after denial.
func (l *SlidingWindowLimiter) Allow(route, client string) error {
	policy, ok := l.policies[route]
	if !ok {
		return nil
	}

	now := l.now()
	cutoff := now.Add(-policy.Window)
	key := rateKey{route: route, client: client}

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := evictBefore(l.attempts[key], cutoff)

	if len(recent) >= policy.MaxAttempts {
		l.attempts[key] = recent
		retryAfter := recent[0].Add(policy.Window).Sub(now)
		return oops.Code("RATE_LIMITED").
			With("route", route).
			With("retry_after", retryAfter.String()).
			Wrap(ErrRateLimited)
	}

	l.attempts[key] = append(recent, now)
	l.maybeSweep(now)
	return nil
}

// RetryAfter reports how long the client must wait before the route
// admits another attempt. Zero means an attempt would be admitted now.
func (l *SlidingWindowLimiter) RetryAfter(route, client string) time.Duration {
	policy, ok := l.policies[route]
	if !ok {
		return 0
	}

	now := l.now()
	key := rateKey{route: route, client: client}

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := evictBefore(l.attempts[key], now.Add(-policy.Window))
	l.attempts[key] = recent
	if len(recent) < policy.MaxAttempts {
		return 0
	}
	return recent[0].Add(policy.Window).Sub(now)
}

// evictBefore drops attempts older than the cutoff, preserving order.
// Entries outside the window are discardable at any point without
// affecting the correctness of concurrent counts.
func evictBefore(attempts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(attempts) && !attempts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return attempts
	}
	return append([]time.Time(nil), attempts[i:]...)
}

// maybeSweep discards keys whose every attempt has aged out of its
// route's window. Called with the mutex held.
func (l *SlidingWindowLimiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now

	for key, attempts := range l.attempts {
		policy, ok := l.policies[key.route]
		if !ok {
			delete(l.attempts, key)
			continue
		}
		if live := evictBefore(attempts, now.Add(-policy.Window)); len(live) == 0 {
			delete(l.attempts, key)
		} else {
			l.attempts[key] = live
		}
	}
}
