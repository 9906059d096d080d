// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

// Package postgres implements auth.AccountRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/matchday/matchday/internal/auth"
)

// poolIface is the subset of pgxpool.Pool the repository needs. It matches
// pgxmock.PgxPoolIface so tests can run without a database.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `
	id, email, first_name, last_name, password_hash, role, is_active,
	email_verified, email_verification_token,
	password_reset_token, password_reset_expires_at,
	otp_code, otp_expires_at,
	last_login_at, created_at, updated_at`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
// Single-use token consumption is a conditional UPDATE so concurrent
// consumers serialize in the database and exactly one wins.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account. A unique_violation on the email index maps
// to auth.ErrDuplicateAccount; uniqueness is never checked client-side.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, email, first_name, last_name, password_hash, role, is_active,
			email_verified, email_verification_token,
			password_reset_token, password_reset_expires_at,
			otp_code, otp_expires_at,
			last_login_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		account.ID.String(),
		account.Email,
		account.FirstName,
		account.LastName,
		account.PasswordHash,
		string(account.Role),
		account.IsActive,
		account.EmailVerified,
		account.EmailVerificationToken,
		account.PasswordResetToken,
		account.PasswordResetExpiresAt,
		account.OTPCode,
		account.OTPExpiresAt,
		account.LastLoginAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_DUPLICATE").
				With("email", account.Email).
				Wrap(auth.ErrDuplicateAccount)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+accountColumns+`
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	return account, nil
}

// Update rewrites the mutable fields of an existing account.
func (r *AccountRepository) Update(ctx context.Context, account *auth.Account) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			first_name = $2,
			last_name = $3,
			password_hash = $4,
			role = $5,
			is_active = $6,
			email_verified = $7,
			email_verification_token = $8,
			password_reset_token = $9,
			password_reset_expires_at = $10,
			otp_code = $11,
			otp_expires_at = $12,
			last_login_at = $13,
			updated_at = $14
		WHERE id = $1
	`,
		account.ID.String(),
		account.FirstName,
		account.LastName,
		account.PasswordHash,
		string(account.Role),
		account.IsActive,
		account.EmailVerified,
		account.EmailVerificationToken,
		account.PasswordResetToken,
		account.PasswordResetExpiresAt,
		account.OTPCode,
		account.OTPExpiresAt,
		account.LastLoginAt,
		account.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", account.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", account.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces only the password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// SetVerificationToken replaces the pending verification token.
func (r *AccountRepository) SetVerificationToken(ctx context.Context, id ulid.ULID, token string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET email_verification_token = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), token, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_SET_VERIFICATION_FAILED").
			With("operation", "set verification token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeVerificationToken marks the holder verified and clears the token
// in one statement. Zero rows affected means the token was never issued or
// was already consumed.
func (r *AccountRepository) ConsumeVerificationToken(ctx context.Context, token string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			email_verified = TRUE,
			email_verification_token = NULL,
			updated_at = $2
		WHERE email_verification_token = $1
	`, token, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_VERIFY_EMAIL_FAILED").
			With("operation", "consume verification token").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_TOKEN_MISMATCH").Wrap(auth.ErrInvalidToken)
	}
	return nil
}

// SetResetToken stores the reset token pair.
func (r *AccountRepository) SetResetToken(ctx context.Context, id ulid.ULID, token string, expiresAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			password_reset_token = $2,
			password_reset_expires_at = $3,
			updated_at = $4
		WHERE id = $1
	`, id.String(), token, expiresAt, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_SET_RESET_FAILED").
			With("operation", "set reset token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeResetToken installs the new hash and clears the pair where the
// token matches and has not expired (strict comparison: expiry equal to
// now is expired). The conditional update makes concurrent resets
// winner-takes-token.
func (r *AccountRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			password_hash = $2,
			password_reset_token = NULL,
			password_reset_expires_at = NULL,
			updated_at = $3
		WHERE password_reset_token = $1
		  AND password_reset_expires_at > $3
	`, token, passwordHash, now)
	if err != nil {
		return oops.Code("ACCOUNT_RESET_PASSWORD_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_TOKEN_MISMATCH").Wrap(auth.ErrInvalidToken)
	}
	return nil
}

// SetOTP stores the OTP pair.
func (r *AccountRepository) SetOTP(ctx context.Context, id ulid.ULID, code string, expiresAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			otp_code = $2,
			otp_expires_at = $3,
			updated_at = $4
		WHERE id = $1
	`, id.String(), code, expiresAt, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_SET_OTP_FAILED").
			With("operation", "set otp").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeOTP clears the OTP pair and records the login where the code
// matches and is unexpired. Returns false when no row matched; the caller
// classifies by re-reading.
func (r *AccountRepository) ConsumeOTP(ctx context.Context, id ulid.ULID, code string, now time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			otp_code = NULL,
			otp_expires_at = NULL,
			last_login_at = $3,
			updated_at = $3
		WHERE id = $1
		  AND otp_code = $2
		  AND otp_expires_at > $3
	`, id.String(), code, now)
	if err != nil {
		return false, oops.Code("ACCOUNT_CONSUME_OTP_FAILED").
			With("operation", "consume otp").
			With("id", id.String()).
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// RecordLogin updates the last-login timestamp.
func (r *AccountRepository) RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET last_login_at = $2, updated_at = $2
		WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return oops.Code("ACCOUNT_RECORD_LOGIN_FAILED").
			With("operation", "record login").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr        string
		email        string
		firstName    string
		lastName     string
		passwordHash string
		role         string
		isActive     bool

		emailVerified     bool
		verificationToken *string

		resetToken     *string
		resetExpiresAt *time.Time

		otpCode      *string
		otpExpiresAt *time.Time

		lastLoginAt *time.Time
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := row.Scan(
		&idStr,
		&email,
		&firstName,
		&lastName,
		&passwordHash,
		&role,
		&isActive,
		&emailVerified,
		&verificationToken,
		&resetToken,
		&resetExpiresAt,
		&otpCode,
		&otpExpiresAt,
		&lastLoginAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to wrap with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Account{
		ID:                     id,
		Email:                  email,
		FirstName:              firstName,
		LastName:               lastName,
		PasswordHash:           passwordHash,
		Role:                   auth.Role(role),
		IsActive:               isActive,
		EmailVerified:          emailVerified,
		EmailVerificationToken: verificationToken,
		PasswordResetToken:     resetToken,
		PasswordResetExpiresAt: resetExpiresAt,
		OTPCode:                otpCode,
		OTPExpiresAt:           otpExpiresAt,
		LastLoginAt:            lastLoginAt,
		CreatedAt:              createdAt,
		UpdatedAt:              updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
