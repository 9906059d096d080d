// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Single-use token lifetimes.
const (
	ResetTokenExpiry = time.Hour
	OTPExpiry        = 10 * time.Minute
)

// dummyPasswordHash is verified against when a login targets an account
// that does not exist, so response time does not reveal whether the email
// is registered. It is a fake hash that will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// AuthResult is a successful authentication: a signed session token plus
// the sanitized account view.
type AuthResult struct {
	Token   string
	Account Summary
}

// CredentialService orchestrates the account lifecycle. All durable state
// lives in the repository; the service itself is stateless and safe for
// concurrent use.
type CredentialService struct {
	accounts AccountRepository
	hasher   PasswordHasher
	codec    *TokenCodec
	mailer   EmailDispatcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewCredentialService creates a CredentialService. Every collaborator is
// injected; a nil logger falls back to slog.Default.
func NewCredentialService(
	accounts AccountRepository,
	hasher PasswordHasher,
	codec *TokenCodec,
	mailer EmailDispatcher,
	logger *slog.Logger,
) (*CredentialService, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("password hasher is required")
	}
	if codec == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("token codec is required")
	}
	if mailer == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("email dispatcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialService{
		accounts: accounts,
		hasher:   hasher,
		codec:    codec,
		mailer:   mailer,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// WithClock overrides the service clock. For tests.
func (s *CredentialService) WithClock(now func() time.Time) *CredentialService {
	s.now = now
	return s
}

// Register creates an account with a pending email-verification token and
// dispatches the verification email. The account commits before dispatch;
// a delivery failure is logged and reported via metrics, never returned.
func (s *CredentialService) Register(ctx context.Context, email, password, firstName, lastName string) (*Summary, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	token, err := RandomOpaqueToken()
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "generate verification token").
			Wrap(err)
	}

	now := s.now()
	account := &Account{
		ID:                     ulid.Make(),
		Email:                  email,
		FirstName:              firstName,
		LastName:               lastName,
		PasswordHash:           hash,
		Role:                   RoleUser,
		IsActive:               true,
		EmailVerified:          false,
		EmailVerificationToken: &token,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			return nil, err //nolint:wrapcheck // repository already wrapped with context
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	s.dispatch(ctx, "verification", account.Email, func(ctx context.Context) error {
		return s.mailer.SendVerification(ctx, account.Email, token)
	})

	summary := account.Summary()
	return &summary, nil
}

// Login verifies the password and issues a session token. Absent accounts,
// inactive accounts, and wrong passwords all return ErrInvalidCredentials;
// password verification runs against a dummy hash when the account is
// missing so the failure paths stay in the same latency class.
func (s *CredentialService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	account, lookupErr := s.accounts.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = account.PasswordHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		// fall through to dummy verification
	default:
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get account by email").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && exists {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !exists || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}
	if !account.IsActive {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	// Best effort; login succeeds even if the timestamp write fails.
	if err := s.accounts.RecordLogin(ctx, account.ID, s.now()); err != nil {
		s.logger.Warn("failed to record login time", "error", err)
	}

	return s.issueFor(account)
}

// VerifyEmail consumes a pending verification token. The consume is a
// single conditional update, so a token verifies exactly once; any later
// call with the same token fails.
func (s *CredentialService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return oops.Code("AUTH_TOKEN_EMPTY").Wrap(ErrInvalidToken)
	}
	return s.accounts.ConsumeVerificationToken(ctx, token) //nolint:wrapcheck // repository wraps with context
}

// ResendVerification regenerates the verification token and redispatches
// the email.
func (s *CredentialService) ResendVerification(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err //nolint:wrapcheck // repository wraps with context
	}
	if account.EmailVerified {
		return oops.Code("AUTH_ALREADY_VERIFIED").Wrap(ErrAlreadyVerified)
	}

	token, err := RandomOpaqueToken()
	if err != nil {
		return oops.Code("AUTH_RESEND_FAILED").
			With("operation", "generate verification token").
			Wrap(err)
	}

	if err := s.accounts.SetVerificationToken(ctx, account.ID, token); err != nil {
		return oops.Code("AUTH_RESEND_FAILED").
			With("operation", "set verification token").
			Wrap(err)
	}

	s.dispatch(ctx, "verification", account.Email, func(ctx context.Context) error {
		return s.mailer.SendVerification(ctx, account.Email, token)
	})
	return nil
}

// ForgotPassword creates a one-hour reset token and dispatches the reset
// email. It succeeds whether or not the email is registered, and the token
// is generated on both paths so the work profile does not branch on
// account existence.
func (s *CredentialService) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	token, err := RandomOpaqueToken()
	if err != nil {
		return oops.Code("AUTH_FORGOT_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	account, lookupErr := s.accounts.GetByEmail(ctx, email)
	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			// Success shape regardless of existence.
			return nil
		}
		return oops.Code("AUTH_FORGOT_FAILED").
			With("operation", "get account by email").
			Wrap(lookupErr)
	}

	if err := s.accounts.SetResetToken(ctx, account.ID, token, s.now().Add(ResetTokenExpiry)); err != nil {
		return oops.Code("AUTH_FORGOT_FAILED").
			With("operation", "set reset token").
			Wrap(err)
	}

	s.dispatch(ctx, "password_reset", account.Email, func(ctx context.Context) error {
		return s.mailer.SendPasswordReset(ctx, account.Email, token)
	})
	return nil
}

// ResetPassword consumes a reset token and installs the new password.
// Expiry is strict: a token whose expiry equals now is already expired.
// Under concurrent resets with the same token exactly one caller wins.
func (s *CredentialService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return oops.Code("AUTH_TOKEN_EMPTY").Wrap(ErrInvalidToken)
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	return s.accounts.ConsumeResetToken(ctx, token, hash, s.now()) //nolint:wrapcheck // repository wraps with context
}

// ChangePassword verifies the current password and installs the new one.
// A wrong current password leaves the stored hash untouched.
func (s *CredentialService) ChangePassword(ctx context.Context, id ulid.ULID, currentPassword, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err //nolint:wrapcheck // repository wraps with context
	}

	valid, err := s.hasher.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "verify current password").
			Wrap(err)
	}
	if !valid {
		return oops.Code("AUTH_INCORRECT_PASSWORD").Wrap(ErrIncorrectPassword)
	}

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update password").
			Wrap(err)
	}
	return nil
}

// SendOTP generates a six-digit code with a ten-minute expiry and
// dispatches it. Unlike ForgotPassword, an unknown email is an error: the
// caller is expected to sit behind the send-otp rate limit.
func (s *CredentialService) SendOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err //nolint:wrapcheck // repository wraps with context
	}

	code, err := RandomNumericCode(OTPDigits)
	if err != nil {
		return oops.Code("AUTH_SEND_OTP_FAILED").
			With("operation", "generate code").
			Wrap(err)
	}

	if err := s.accounts.SetOTP(ctx, account.ID, code, s.now().Add(OTPExpiry)); err != nil {
		return oops.Code("AUTH_SEND_OTP_FAILED").
			With("operation", "set otp").
			Wrap(err)
	}

	s.dispatch(ctx, "otp", account.Email, func(ctx context.Context) error {
		return s.mailer.SendOTP(ctx, account.Email, code)
	})
	return nil
}

// VerifyOTP consumes a pending code and issues a session token
// (passwordless login). A failed attempt has no side effect on the stored
// code, so a correct retry inside the window still succeeds.
func (s *CredentialService) VerifyOTP(ctx context.Context, email, code string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err //nolint:wrapcheck // repository wraps with context
	}

	now := s.now()
	switch {
	case account.OTPCode == nil || account.OTPExpiresAt == nil:
		return nil, oops.Code("AUTH_NO_OTP").Wrap(ErrNoOTPPending)
	case !account.OTPExpiresAt.After(now):
		return nil, oops.Code("AUTH_OTP_EXPIRED").Wrap(ErrOTPExpired)
	case subtle.ConstantTimeCompare([]byte(*account.OTPCode), []byte(code)) != 1:
		return nil, oops.Code("AUTH_OTP_MISMATCH").Wrap(ErrInvalidOTP)
	}

	consumed, err := s.accounts.ConsumeOTP(ctx, account.ID, code, now)
	if err != nil {
		return nil, oops.Code("AUTH_VERIFY_OTP_FAILED").
			With("operation", "consume otp").
			Wrap(err)
	}
	if !consumed {
		// A concurrent verification won the race; the code is gone.
		return nil, oops.Code("AUTH_NO_OTP").Wrap(ErrNoOTPPending)
	}

	return s.issueFor(account)
}

// Profile returns the sanitized account view after confirming the account
// still exists and is active. Claims alone are not trusted for liveness.
func (s *CredentialService) Profile(ctx context.Context, id ulid.ULID) (*Summary, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err //nolint:wrapcheck // repository wraps with context
	}
	if !account.IsActive {
		return nil, oops.Code("ACCOUNT_INACTIVE").Wrap(ErrNotFound)
	}
	summary := account.Summary()
	return &summary, nil
}

// issueFor signs a session token for the account.
func (s *CredentialService) issueFor(account *Account) (*AuthResult, error) {
	token, err := s.codec.IssueSession(account.ID, account.Email, account.Role)
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_ISSUE_FAILED").
			With("operation", "issue session token").
			Wrap(err)
	}
	return &AuthResult{Token: token, Account: account.Summary()}, nil
}

// dispatch delivers an email best-effort. Failures are logged with the
// recipient and kind but never the token or code, and surfaced through the
// email-failure metric so an operator sees silent delivery problems.
func (s *CredentialService) dispatch(ctx context.Context, kind, email string, send func(context.Context) error) {
	if err := send(ctx); err != nil {
		s.logger.Error("email dispatch failed",
			"kind", kind,
			"email", email,
			"error", err,
		)
	}
}
