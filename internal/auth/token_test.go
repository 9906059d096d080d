// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday/matchday/internal/auth"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestNewTokenCodec(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		_, err := auth.NewTokenCodec([]byte("tooshort"), "matchday", time.Hour)
		assert.Error(t, err)
	})

	t.Run("rejects empty issuer", func(t *testing.T) {
		_, err := auth.NewTokenCodec(testSecret, "", time.Hour)
		assert.Error(t, err)
	})

	t.Run("accepts valid configuration", func(t *testing.T) {
		codec, err := auth.NewTokenCodec(testSecret, "matchday", time.Hour)
		require.NoError(t, err)
		assert.NotNil(t, codec)
	})
}

func TestSessionRoundTrip(t *testing.T) {
	codec, err := auth.NewTokenCodec(testSecret, "matchday", time.Hour)
	require.NoError(t, err)

	id := ulid.Make()

	t.Run("issued token verifies with original claims", func(t *testing.T) {
		token, err := codec.IssueSession(id, "alice@example.com", auth.RoleUser)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := codec.VerifySession(token)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", claims.Email)
		assert.Equal(t, auth.RoleUser, claims.Role)

		parsed, err := claims.AccountID()
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})

	t.Run("empty token is rejected", func(t *testing.T) {
		_, err := codec.VerifySession("")
		assert.ErrorIs(t, err, auth.ErrInvalidSession)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		_, err := codec.VerifySession("not.a.token")
		assert.ErrorIs(t, err, auth.ErrInvalidSession)
	})

	t.Run("token signed with different secret is rejected", func(t *testing.T) {
		other, err := auth.NewTokenCodec([]byte("ffffffffffffffffffffffffffffffff"), "matchday", time.Hour)
		require.NoError(t, err)

		token, err := other.IssueSession(id, "alice@example.com", auth.RoleUser)
		require.NoError(t, err)

		_, err = codec.VerifySession(token)
		assert.ErrorIs(t, err, auth.ErrInvalidSession)
	})

	t.Run("token from different issuer is rejected", func(t *testing.T) {
		other, err := auth.NewTokenCodec(testSecret, "someone-else", time.Hour)
		require.NoError(t, err)

		token, err := other.IssueSession(id, "alice@example.com", auth.RoleUser)
		require.NoError(t, err)

		_, err = codec.VerifySession(token)
		assert.ErrorIs(t, err, auth.ErrInvalidSession)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		issued := time.Now()
		codec, err := auth.NewTokenCodec(testSecret, "matchday", time.Hour)
		require.NoError(t, err)
		codec.WithClock(func() time.Time { return issued })

		token, err := codec.IssueSession(id, "alice@example.com", auth.RoleUser)
		require.NoError(t, err)

		codec.WithClock(func() time.Time { return issued.Add(2 * time.Hour) })
		_, err = codec.VerifySession(token)
		assert.ErrorIs(t, err, auth.ErrInvalidSession)
	})

	t.Run("tampered token is rejected", func(t *testing.T) {
		token, err := codec.IssueSession(id, "alice@example.com", auth.RoleUser)
		require.NoError(t, err)

		tampered := token[:len(token)-2] + "xx"
		_, err = codec.VerifySession(tampered)
		assert.ErrorIs(t, err, auth.ErrInvalidSession)
	})
}

func TestRandomOpaqueToken(t *testing.T) {
	t.Run("produces 64 hex characters", func(t *testing.T) {
		token, err := auth.RandomOpaqueToken()
		require.NoError(t, err)
		assert.Len(t, token, 64)
		for _, r := range token {
			assert.Contains(t, "0123456789abcdef", string(r))
		}
	})

	t.Run("successive tokens differ", func(t *testing.T) {
		token1, err := auth.RandomOpaqueToken()
		require.NoError(t, err)
		token2, err := auth.RandomOpaqueToken()
		require.NoError(t, err)
		assert.NotEqual(t, token1, token2)
	})
}

func TestRandomNumericCode(t *testing.T) {
	t.Run("produces fixed-width numeric string", func(t *testing.T) {
		for range 50 {
			code, err := auth.RandomNumericCode(auth.OTPDigits)
			require.NoError(t, err)
			require.Len(t, code, auth.OTPDigits)
			for _, r := range code {
				assert.True(t, r >= '0' && r <= '9')
			}
		}
	})

	t.Run("rejects non-positive width", func(t *testing.T) {
		_, err := auth.RandomNumericCode(0)
		assert.Error(t, err)
	})

	t.Run("rejects oversized width", func(t *testing.T) {
		_, err := auth.RandomNumericCode(19)
		assert.Error(t, err)
	})
}
