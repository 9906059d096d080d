// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package auth

import "errors"

// Sentinel errors for expected domain failures. Callers classify with
// errors.Is; anything not matching a sentinel is an infrastructure failure
// and gets different retry treatment at the boundary.
var (
	// ErrNotFound is returned when a requested account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateAccount is returned when registering an email that is
	// already taken.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrInvalidCredentials is returned on login when the account is
	// absent, inactive, or the password does not match. One error for all
	// three cases to prevent account enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken is returned when a verification or reset token does
	// not match any account or has expired.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInvalidSession is returned when a session token fails signature
	// or expiry validation.
	ErrInvalidSession = errors.New("invalid or expired session")

	// ErrAlreadyVerified is returned when resending verification for an
	// account whose email is already verified.
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrNoOTPPending is returned when verifying an OTP for an account
	// with no outstanding code.
	ErrNoOTPPending = errors.New("no OTP pending")

	// ErrOTPExpired is returned when the stored OTP has expired.
	ErrOTPExpired = errors.New("OTP expired")

	// ErrInvalidOTP is returned when the submitted code does not match
	// the stored one. The stored code is untouched by a failed attempt.
	ErrInvalidOTP = errors.New("invalid OTP")

	// ErrIncorrectPassword is returned by ChangePassword when the current
	// password does not match the stored hash.
	ErrIncorrectPassword = errors.New("current password is incorrect")

	// ErrRateLimited is returned when a client exceeds the attempt budget
	// for a route within the sliding window.
	ErrRateLimited = errors.New("too many attempts")
)
