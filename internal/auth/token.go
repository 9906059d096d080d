// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token configuration.
const (
	// OpaqueTokenBytes is the entropy of verification and reset tokens.
	// 32 bytes = 256 bits = 64 hex chars.
	OpaqueTokenBytes = 32

	// OTPDigits is the width of one-time passcodes.
	OTPDigits = 6

	// DefaultSessionTTL is the session token lifetime when the codec is
	// constructed without an explicit TTL.
	DefaultSessionTTL = 24 * time.Hour

	// minSigningSecretLen is the minimum HMAC secret length in bytes.
	minSigningSecretLen = 32
)

// SessionClaims are the verified contents of a session token. The subject
// is the account ID; email and role ride along so authenticated endpoints
// can authorize without a store round-trip.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// AccountID parses the subject claim back into an account ID.
func (c *SessionClaims) AccountID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code("SESSION_INVALID_SUBJECT").
			With("subject", c.Subject).
			Wrap(err)
	}
	return id, nil
}

// TokenCodec issues and verifies signed session tokens, and generates the
// random single-use tokens used across the credential lifecycle.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec creates a TokenCodec. The secret must be at least 32 bytes;
// ttl <= 0 falls back to DefaultSessionTTL.
func NewTokenCodec(secret []byte, issuer string, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) < minSigningSecretLen {
		return nil, oops.Code("SESSION_SECRET_TOO_SHORT").
			With("min_bytes", minSigningSecretLen).
			Errorf("signing secret must be at least %d bytes", minSigningSecretLen)
	}
	if issuer == "" {
		return nil, oops.Code("SESSION_ISSUER_EMPTY").Errorf("issuer cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenCodec{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the codec's clock. For tests.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

// IssueSession signs a time-boxed HS256 bearer token for the account.
func (c *TokenCodec) IssueSession(id ulid.ULID, email string, role Role) (string, error) {
	now := c.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Email: email,
		Role:  role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("SESSION_SIGN_FAILED").
			With("operation", "sign session token").
			Wrap(err)
	}
	return signed, nil
}

// VerifySession validates the signature, issuer, and expiry of a session
// token and returns its claims. Any validation failure, including a
// well-formed but expired token, wraps ErrInvalidSession.
func (c *TokenCodec) VerifySession(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Wrap(ErrInvalidSession)
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, oops.Code("SESSION_VERIFY_FAILED").
			Wrap(errors.Join(ErrInvalidSession, err))
	}
	if !parsed.Valid {
		return nil, oops.Code("SESSION_VERIFY_FAILED").Wrap(ErrInvalidSession)
	}
	return claims, nil
}

// RandomOpaqueToken creates a cryptographically random single-use token,
// hex encoded. Used for email verification and password reset.
func RandomOpaqueToken() (string, error) {
	buf := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// RandomNumericCode creates a uniformly random fixed-width numeric string
// from a cryptographic source. Used for OTP codes.
func RandomNumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", oops.Code("TOKEN_INVALID_DIGITS").
			With("digits", digits).
			Errorf("code width must be between 1 and 18 digits")
	}

	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Int").
			Wrap(err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
