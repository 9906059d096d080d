// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the coarse access level attached to session claims.
type Role string

// Account roles. New accounts always start as RoleUser.
const (
	RoleUser    Role = "USER"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Password length constraints.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// Account is one registered identity, unique per normalized email.
//
// Token fields travel in pairs: a token pointer and its expiry are either
// both nil or both set. The pairs are enforced again by CHECK constraints
// in the schema so a half-written pair is never observable.
type Account struct {
	ID           ulid.ULID
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         Role
	IsActive     bool

	EmailVerified          bool
	EmailVerificationToken *string

	PasswordResetToken     *string
	PasswordResetExpiresAt *time.Time

	OTPCode      *string
	OTPExpiresAt *time.Time

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Summary is the outward-facing view of an account. It never carries the
// password hash or any pending token.
type Summary struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Role          Role      `json:"role"`
	IsActive      bool      `json:"is_active"`
	EmailVerified bool      `json:"is_email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Summary returns the sanitized view of the account.
func (a *Account) Summary() Summary {
	return Summary{
		ID:            a.ID.String(),
		Email:         a.Email,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Role:          a.Role,
		IsActive:      a.IsActive,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
	}
}

// NormalizeEmail lowercases and trims an email address. All lookups and
// uniqueness checks operate on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that the address is well-formed after normalization.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email address is not valid")
	}
	return nil
}

// ValidatePassword checks plaintext password constraints before hashing.
// The plaintext never appears in the returned error.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("ACCOUNT_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return oops.Code("ACCOUNT_INVALID_PASSWORD").
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// AccountRepository manages account persistence.
//
// Every method is atomic with respect to concurrent callers on the same
// account. The Consume* methods clear a single-use token and apply its
// gated effect in one conditional UPDATE: when two callers race on the
// same token, exactly one wins and the loser gets the domain error for a
// token that no longer matches.
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicateAccount (wrapped)
	// if the normalized email is already taken; uniqueness is enforced by
	// a database constraint, never check-then-insert.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by normalized email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Update rewrites the mutable fields of an existing account.
	Update(ctx context.Context, account *Account) error

	// UpdatePassword replaces only the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetVerificationToken replaces the pending email verification token.
	SetVerificationToken(ctx context.Context, id ulid.ULID, token string) error

	// ConsumeVerificationToken marks the matching account verified and
	// clears the token. Returns ErrInvalidToken (wrapped) if no account
	// holds the token.
	ConsumeVerificationToken(ctx context.Context, token string) error

	// SetResetToken stores the password reset token pair.
	SetResetToken(ctx context.Context, id ulid.ULID, token string, expiresAt time.Time) error

	// ConsumeResetToken sets the new password hash and clears the reset
	// pair where the token matches and expiresAt > now (strict). Returns
	// ErrInvalidToken (wrapped) otherwise.
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) error

	// SetOTP stores the OTP pair.
	SetOTP(ctx context.Context, id ulid.ULID, code string, expiresAt time.Time) error

	// ConsumeOTP clears the OTP pair and records the login where the code
	// matches and has not expired. Returns false with nil error when the
	// conditional update matched no row; the caller re-reads to classify.
	ConsumeOTP(ctx context.Context, id ulid.ULID, code string, now time.Time) (bool, error)

	// RecordLogin updates LastLoginAt.
	RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error
}
