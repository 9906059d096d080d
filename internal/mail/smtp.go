// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

// Package mail implements auth.EmailDispatcher over SMTP, plus a
// log-only dispatcher for development.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/matchday/matchday/internal/auth"
	"github.com/matchday/matchday/internal/observability"
)

// Dispatch timeouts and retry budget. Delivery is best-effort: the token
// state has already committed by the time we get here, so we retry briefly
// and then surface the failure to the operator instead of blocking the
// request path.
const (
	defaultSendTimeout = 15 * time.Second
	retryBase          = 500 * time.Millisecond
	maxRetries         = 2
)

// SMTPConfig configures the SMTP dispatcher.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FrontendURL string
	SendTimeout time.Duration
}

// SMTPDispatcher delivers lifecycle emails through an SMTP relay with
// STARTTLS when the server offers it.
type SMTPDispatcher struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPDispatcher creates an SMTPDispatcher.
func NewSMTPDispatcher(cfg SMTPConfig, logger *slog.Logger) (*SMTPDispatcher, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("SMTP host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("from address is required")
	}
	if cfg.FrontendURL == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("frontend URL is required")
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPDispatcher{cfg: cfg, logger: logger}, nil
}

// SendVerification delivers the email-verification link.
func (d *SMTPDispatcher) SendVerification(ctx context.Context, email, token string) error {
	link := d.frontendLink("/auth/verify-email", token)
	return d.send(ctx, "verification", email,
		"Verify Your Email Address", verificationBody(link))
}

// SendPasswordReset delivers the password-reset link.
func (d *SMTPDispatcher) SendPasswordReset(ctx context.Context, email, token string) error {
	link := d.frontendLink("/auth/reset-password", token)
	return d.send(ctx, "password_reset", email,
		"Reset Your Password", passwordResetBody(link))
}

// SendOTP delivers the one-time passcode.
func (d *SMTPDispatcher) SendOTP(ctx context.Context, email, code string) error {
	return d.send(ctx, "otp", email, "Your One-Time Passcode", otpBody(code))
}

// frontendLink builds a token-carrying URL into the frontend.
func (d *SMTPDispatcher) frontendLink(path, token string) string {
	base := strings.TrimRight(d.cfg.FrontendURL, "/")
	return base + path + "?token=" + url.QueryEscape(token)
}

// send delivers one message with bounded retries. Failures increment the
// dispatch-failure metric and are logged without the message body, so a
// token or code never reaches the logs.
func (d *SMTPDispatcher) send(ctx context.Context, kind, to, subject, htmlBody string) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	msg := buildMessage(d.cfg.From, to, subject, htmlBody)

	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if sendErr := d.sendOnce(ctx, to, msg); sendErr != nil {
			return retry.RetryableError(sendErr)
		}
		return nil
	})
	if err != nil {
		observability.RecordEmailDispatchFailure(kind)
		d.logger.Error("email dispatch failed",
			"kind", kind,
			"to", to,
			"error", err,
		)
		return oops.Code("MAIL_DISPATCH_FAILED").
			With("kind", kind).
			Wrap(err)
	}

	d.logger.Info("email dispatched", "kind", kind, "to", to)
	return nil
}

// sendOnce performs a single SMTP transaction with a context-bounded dial
// and a connection deadline, so a stalled relay cannot hang the caller.
func (d *SMTPDispatcher) sendOnce(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(d.cfg.Host, fmt.Sprintf("%d", d.cfg.Port))

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close() //nolint:errcheck // deadline failure already aborts the send
			return fmt.Errorf("set deadline: %w", err)
		}
	}

	client, err := smtp.NewClient(conn, d.cfg.Host)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // handshake failed, nothing else to do
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close() //nolint:errcheck // best-effort teardown after Quit or error

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: d.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if d.cfg.Username != "" {
		auth := smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(d.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	return client.Quit() //nolint:wrapcheck // terminal step, error text is already specific
}

// buildMessage assembles an RFC 5322 HTML message.
func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func verificationBody(link string) string {
	return `<div style="max-width:600px;margin:0 auto;padding:20px;font-family:Arial,sans-serif;">
  <h2>Welcome to Matchday!</h2>
  <p>Please verify your email address by clicking the button below:</p>
  <p style="text-align:center;margin:30px 0;">
    <a href="` + link + `" style="background-color:#007bff;color:#fff;padding:12px 30px;text-decoration:none;border-radius:5px;">Verify Email Address</a>
  </p>
  <p>If you didn't create an account, please ignore this email.</p>
</div>`
}

func passwordResetBody(link string) string {
	return `<div style="max-width:600px;margin:0 auto;padding:20px;font-family:Arial,sans-serif;">
  <h2>Password Reset Request</h2>
  <p>You requested a password reset. Click the button below to choose a new password:</p>
  <p style="text-align:center;margin:30px 0;">
    <a href="` + link + `" style="background-color:#dc3545;color:#fff;padding:12px 30px;text-decoration:none;border-radius:5px;">Reset Password</a>
  </p>
  <p>This link expires in 1 hour. If you didn't request a reset, please ignore this email.</p>
</div>`
}

func otpBody(code string) string {
	return `<div style="max-width:600px;margin:0 auto;padding:20px;font-family:Arial,sans-serif;">
  <h2>Your Verification Code</h2>
  <p>Use the following code to sign in:</p>
  <p style="text-align:center;margin:30px 0;">
    <span style="font-size:32px;font-weight:bold;letter-spacing:10px;">` + code + `</span>
  </p>
  <p>This code expires in 10 minutes. If you didn't request it, please ignore this email.</p>
</div>`
}

var _ auth.EmailDispatcher = (*SMTPDispatcher)(nil)
