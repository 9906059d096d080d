// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday/matchday/internal/auth"
)

func TestSlidingWindowLimiter_Allow(t *testing.T) {
	policies := map[string]auth.RatePolicy{
		"login": {MaxAttempts: 5, Window: time.Minute},
	}

	t.Run("admits attempts up to the budget", func(t *testing.T) {
		limiter := auth.NewSlidingWindowLimiter(policies)
		for range 5 {
			assert.NoError(t, limiter.Allow("login", "1.2.3.4"))
		}
	})

	t.Run("denies the attempt over the budget", func(t *testing.T) {
		limiter := auth.NewSlidingWindowLimiter(policies)
		for range 5 {
			require.NoError(t, limiter.Allow("login", "1.2.3.4"))
		}
		err := limiter.Allow("login", "1.2.3.4")
		assert.ErrorIs(t, err, auth.ErrRateLimited)
	})

	t.Run("clients are isolated", func(t *testing.T) {
		limiter := auth.NewSlidingWindowLimiter(policies)
		for range 5 {
			require.NoError(t, limiter.Allow("login", "1.2.3.4"))
		}
		assert.NoError(t, limiter.Allow("login", "5.6.7.8"))
	})

	t.Run("routes are isolated", func(t *testing.T) {
		limiter := auth.NewSlidingWindowLimiter(map[string]auth.RatePolicy{
			"login":    {MaxAttempts: 1, Window: time.Minute},
			"send-otp": {MaxAttempts: 1, Window: time.Minute},
		})
		require.NoError(t, limiter.Allow("login", "1.2.3.4"))
		assert.NoError(t, limiter.Allow("send-otp", "1.2.3.4"))
	})

	t.Run("unknown route is always admitted", func(t *testing.T) {
		limiter := auth.NewSlidingWindowLimiter(policies)
		for range 100 {
			assert.NoError(t, limiter.Allow("profile", "1.2.3.4"))
		}
	})

	t.Run("attempts age out of the window", func(t *testing.T) {
		now := time.Now()
		limiter := auth.NewSlidingWindowLimiter(policies).
			WithClock(func() time.Time { return now })

		for range 5 {
			require.NoError(t, limiter.Allow("login", "1.2.3.4"))
		}
		require.ErrorIs(t, limiter.Allow("login", "1.2.3.4"), auth.ErrRateLimited)

		now = now.Add(61 * time.Second)
		assert.NoError(t, limiter.Allow("login", "1.2.3.4"))
	})

	t.Run("denied attempts do not extend the window", func(t *testing.T) {
		now := time.Now()
		limiter := auth.NewSlidingWindowLimiter(policies).
			WithClock(func() time.Time { return now })

		for range 5 {
			require.NoError(t, limiter.Allow("login", "1.2.3.4"))
		}

		// Hammering while denied must not push recovery further out.
		for range 10 {
			now = now.Add(time.Second)
			require.ErrorIs(t, limiter.Allow("login", "1.2.3.4"), auth.ErrRateLimited)
		}

		now = now.Add(51 * time.Second)
		assert.NoError(t, limiter.Allow("login", "1.2.3.4"))
	})
}

func TestSlidingWindowLimiter_RetryAfter(t *testing.T) {
	policies := map[string]auth.RatePolicy{
		"login": {MaxAttempts: 2, Window: time.Minute},
	}

	t.Run("zero when budget remains", func(t *testing.T) {
		limiter := auth.NewSlidingWindowLimiter(policies)
		require.NoError(t, limiter.Allow("login", "1.2.3.4"))
		assert.Zero(t, limiter.RetryAfter("login", "1.2.3.4"))
	})

	t.Run("reports time until oldest attempt expires", func(t *testing.T) {
		now := time.Now()
		limiter := auth.NewSlidingWindowLimiter(policies).
			WithClock(func() time.Time { return now })

		require.NoError(t, limiter.Allow("login", "1.2.3.4"))
		now = now.Add(10 * time.Second)
		require.NoError(t, limiter.Allow("login", "1.2.3.4"))

		assert.Equal(t, 50*time.Second, limiter.RetryAfter("login", "1.2.3.4"))
	})

	t.Run("zero for unknown route", func(t *testing.T) {
		limiter := auth.NewSlidingWindowLimiter(policies)
		assert.Zero(t, limiter.RetryAfter("profile", "1.2.3.4"))
	})
}

func TestDefaultRatePolicies(t *testing.T) {
	assert.Equal(t, auth.RatePolicy{MaxAttempts: 5, Window: time.Minute}, auth.DefaultRatePolicies["login"])
	assert.Equal(t, auth.RatePolicy{MaxAttempts: 3, Window: time.Minute}, auth.DefaultRatePolicies["forgot-password"])
	assert.Equal(t, auth.RatePolicy{MaxAttempts: 3, Window: time.Minute}, auth.DefaultRatePolicies["send-otp"])
}
