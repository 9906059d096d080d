// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/matchday/matchday/internal/auth"
)

// LogDispatcher is a development dispatcher that logs instead of sending.
// Tokens and codes are never included in the log output.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a LogDispatcher. A nil logger falls back to
// slog.Default.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) SendVerification(ctx context.Context, email, _ string) error {
	d.logger.InfoContext(ctx, "would send verification email", "to", email)
	return nil
}

func (d *LogDispatcher) SendPasswordReset(ctx context.Context, email, _ string) error {
	d.logger.InfoContext(ctx, "would send password reset email", "to", email)
	return nil
}

func (d *LogDispatcher) SendOTP(ctx context.Context, email, _ string) error {
	d.logger.InfoContext(ctx, "would send one-time passcode email", "to", email)
	return nil
}

var _ auth.EmailDispatcher = (*LogDispatcher)(nil)
