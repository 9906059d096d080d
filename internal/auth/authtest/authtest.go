// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

// Package authtest provides in-memory test doubles for the auth package.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/matchday/matchday/internal/auth"
)

// MemoryRepository is an in-memory auth.AccountRepository with the same
// atomicity guarantees as the Postgres implementation: every method runs
// under one mutex, and the Consume* methods are conditional updates.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[ulid.ULID]*auth.Account

	// FailWith, when set, is returned by every method. Simulates an
	// unreachable store.
	FailWith error
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: make(map[ulid.ULID]*auth.Account)}
}

// Create stores a new account, enforcing email uniqueness.
func (m *MemoryRepository) Create(_ context.Context, account *auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	for _, existing := range m.accounts {
		if existing.Email == account.Email {
			return oops.Code("ACCOUNT_DUPLICATE").Wrap(auth.ErrDuplicateAccount)
		}
	}
	cp := *account
	m.accounts[account.ID] = &cp
	return nil
}

// GetByID retrieves a copy of the account.
func (m *MemoryRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	account, ok := m.accounts[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	cp := *account
	return &cp, nil
}

// GetByEmail retrieves a copy of the account by normalized email.
func (m *MemoryRepository) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	email = auth.NormalizeEmail(email)
	for _, account := range m.accounts {
		if account.Email == email {
			cp := *account
			return &cp, nil
		}
	}
	return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// Update rewrites the stored account.
func (m *MemoryRepository) Update(_ context.Context, account *auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if _, ok := m.accounts[account.ID]; !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	cp := *account
	m.accounts[account.ID] = &cp
	return nil
}

// UpdatePassword replaces the password hash.
func (m *MemoryRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	account, ok := m.accounts[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	account.PasswordHash = passwordHash
	account.UpdatedAt = time.Now()
	return nil
}

// SetVerificationToken replaces the pending verification token.
func (m *MemoryRepository) SetVerificationToken(_ context.Context, id ulid.ULID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	account, ok := m.accounts[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	account.EmailVerificationToken = &token
	return nil
}

// ConsumeVerificationToken verifies the holder and clears the token.
func (m *MemoryRepository) ConsumeVerificationToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	for _, account := range m.accounts {
		if account.EmailVerificationToken != nil && *account.EmailVerificationToken == token {
			account.EmailVerified = true
			account.EmailVerificationToken = nil
			return nil
		}
	}
	return oops.Code("ACCOUNT_TOKEN_MISMATCH").Wrap(auth.ErrInvalidToken)
}

// SetResetToken stores the reset token pair.
func (m *MemoryRepository) SetResetToken(_ context.Context, id ulid.ULID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	account, ok := m.accounts[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	account.PasswordResetToken = &token
	account.PasswordResetExpiresAt = &expiresAt
	return nil
}

// ConsumeResetToken installs the hash and clears the pair where the token
// matches and expiry > now.
func (m *MemoryRepository) ConsumeResetToken(_ context.Context, token, passwordHash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	for _, account := range m.accounts {
		if account.PasswordResetToken != nil && *account.PasswordResetToken == token &&
			account.PasswordResetExpiresAt != nil && account.PasswordResetExpiresAt.After(now) {
			account.PasswordHash = passwordHash
			account.PasswordResetToken = nil
			account.PasswordResetExpiresAt = nil
			return nil
		}
	}
	return oops.Code("ACCOUNT_TOKEN_MISMATCH").Wrap(auth.ErrInvalidToken)
}

// SetOTP stores the OTP pair.
func (m *MemoryRepository) SetOTP(_ context.Context, id ulid.ULID, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	account, ok := m.accounts[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	account.OTPCode = &code
	account.OTPExpiresAt = &expiresAt
	return nil
}

// ConsumeOTP clears the pair and records the login where the code matches
// and is unexpired.
func (m *MemoryRepository) ConsumeOTP(_ context.Context, id ulid.ULID, code string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return false, m.FailWith
	}
	account, ok := m.accounts[id]
	if !ok {
		return false, nil
	}
	if account.OTPCode == nil || *account.OTPCode != code ||
		account.OTPExpiresAt == nil || !account.OTPExpiresAt.After(now) {
		return false, nil
	}
	account.OTPCode = nil
	account.OTPExpiresAt = nil
	at := now
	account.LastLoginAt = &at
	return true, nil
}

// RecordLogin updates the last-login timestamp.
func (m *MemoryRepository) RecordLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	account, ok := m.accounts[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	cp := at
	account.LastLoginAt = &cp
	return nil
}

// Snapshot returns a copy of the stored account, or nil. Test inspection
// helper; not part of the repository contract.
func (m *MemoryRepository) Snapshot(id ulid.ULID) *auth.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil
	}
	cp := *account
	return &cp
}

// SnapshotByEmail is Snapshot keyed by normalized email.
func (m *MemoryRepository) SnapshotByEmail(email string) *auth.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = auth.NormalizeEmail(email)
	for _, account := range m.accounts {
		if account.Email == email {
			cp := *account
			return &cp
		}
	}
	return nil
}

var _ auth.AccountRepository = (*MemoryRepository)(nil)

// SentEmail is one recorded dispatch.
type SentEmail struct {
	Kind  string // "verification", "password_reset", "otp"
	To    string
	Token string
}

// RecordingDispatcher is an auth.EmailDispatcher that records every send.
type RecordingDispatcher struct {
	mu   sync.Mutex
	sent []SentEmail

	// FailWith, when set, is returned by every send.
	FailWith error
}

// NewRecordingDispatcher creates an empty RecordingDispatcher.
func NewRecordingDispatcher() *RecordingDispatcher {
	return &RecordingDispatcher{}
}

// SendVerification records a verification email.
func (d *RecordingDispatcher) SendVerification(_ context.Context, email, token string) error {
	return d.record("verification", email, token)
}

// SendPasswordReset records a reset email.
func (d *RecordingDispatcher) SendPasswordReset(_ context.Context, email, token string) error {
	return d.record("password_reset", email, token)
}

// SendOTP records an OTP email.
func (d *RecordingDispatcher) SendOTP(_ context.Context, email, code string) error {
	return d.record("otp", email, code)
}

func (d *RecordingDispatcher) record(kind, to, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailWith != nil {
		return d.FailWith
	}
	d.sent = append(d.sent, SentEmail{Kind: kind, To: to, Token: token})
	return nil
}

// Sent returns a copy of the recorded sends.
func (d *RecordingDispatcher) Sent() []SentEmail {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]SentEmail(nil), d.sent...)
}

// Last returns the most recent send, or nil.
func (d *RecordingDispatcher) Last() *SentEmail {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sent) == 0 {
		return nil
	}
	cp := d.sent[len(d.sent)-1]
	return &cp
}

var _ auth.EmailDispatcher = (*RecordingDispatcher)(nil)
