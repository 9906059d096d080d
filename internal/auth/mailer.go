// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package auth

import "context"

// EmailDispatcher delivers lifecycle emails out-of-band. Delivery is
// best-effort from the service's perspective: the state transition that
// minted a token commits before dispatch, and a dispatch failure never
// rolls it back. Implementations must surface failures (log + metric)
// rather than swallow them, and must never log the token or code.
type EmailDispatcher interface {
	// SendVerification delivers the email-verification link.
	SendVerification(ctx context.Context, email, token string) error

	// SendPasswordReset delivers the password-reset link.
	SendPasswordReset(ctx context.Context, email, token string) error

	// SendOTP delivers the one-time passcode.
	SendOTP(ctx context.Context, email, code string) error
}
