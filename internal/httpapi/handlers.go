// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matchday/matchday/internal/auth"
	"github.com/matchday/matchday/internal/observability"
)

// maxBodyBytes bounds request bodies; credential payloads are tiny.
const maxBodyBytes = 1 << 16

// AuthHandler serves the credential lifecycle routes.
type AuthHandler struct {
	service *auth.CredentialService
	codec   *auth.TokenCodec
	limiter *auth.SlidingWindowLimiter
	metrics *observability.Metrics
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(
	service *auth.CredentialService,
	codec *auth.TokenCodec,
	limiter *auth.SlidingWindowLimiter,
	metrics *observability.Metrics,
) *AuthHandler {
	return &AuthHandler{
		service: service,
		codec:   codec,
		limiter: limiter,
		metrics: metrics,
	}
}

// Mount registers the auth routes.
func (h *AuthHandler) Mount(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.With(h.rateLimit("login")).Post("/login", h.handleLogin)
		r.Post("/verify-email", h.handleVerifyEmail)
		r.Post("/resend-verification", h.handleResendVerification)
		r.With(h.rateLimit("forgot-password")).Post("/forgot-password", h.handleForgotPassword)
		r.Post("/reset-password", h.handleResetPassword)
		r.With(h.rateLimit("send-otp")).Post("/send-otp", h.handleSendOTP)
		r.Post("/verify-otp", h.handleVerifyOTP)

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Patch("/change-password", h.handleChangePassword)
			r.Get("/profile", h.handleProfile)
		})
	})
}

// authResponse is the body for operations that establish a session.
type authResponse struct {
	AccessToken string       `json:"access_token"`
	User        auth.Summary `json:"user"`
}

// registerResponse confirms registration and echoes the sanitized account.
type registerResponse struct {
	Message string       `json:"message"`
	User    auth.Summary `json:"user"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := h.service.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	h.record("register", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message: "Registration successful. Please check your email to verify your account.",
		User:    *summary,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, badRequest("email and password are required"))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	h.record("login", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{AccessToken: result.Token, User: result.Account})
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.service.VerifyEmail(r.Context(), req.Token)
	h.record("verify_email", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Email verified successfully."})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Email == "" {
		writeError(w, r, badRequest("email is required"))
		return
	}

	err := h.service.ResendVerification(r.Context(), req.Email)
	h.record("resend_verification", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Verification email sent."})
}

func (h *AuthHandler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Email == "" {
		writeError(w, r, badRequest("email is required"))
		return
	}

	err := h.service.ForgotPassword(r.Context(), req.Email)
	h.record("forgot_password", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Identical body whether or not the email is registered.
	writeJSON(w, http.StatusOK, messageResponse{
		Message: "If an account with that email exists, a password reset link has been sent.",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword)
	h.record("reset_password", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset successfully."})
}

func (h *AuthHandler) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Email == "" {
		writeError(w, r, badRequest("email is required"))
		return
	}

	err := h.service.SendOTP(r.Context(), req.Email)
	h.record("send_otp", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "A one-time passcode has been sent to your email."})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *AuthHandler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Email == "" || req.Code == "" {
		writeError(w, r, badRequest("email and code are required"))
		return
	}

	result, err := h.service.VerifyOTP(r.Context(), req.Email, req.Code)
	h.record("verify_otp", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{AccessToken: result.Token, User: result.Account})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AuthHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, auth.ErrInvalidSession)
		return
	}
	id, err := claims.AccountID()
	if err != nil {
		writeError(w, r, auth.ErrInvalidSession)
		return
	}

	var req changePasswordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.CurrentPassword == "" {
		writeError(w, r, badRequest("current password is required"))
		return
	}

	err = h.service.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword)
	h.record("change_password", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password changed successfully."})
}

func (h *AuthHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, auth.ErrInvalidSession)
		return
	}
	id, err := claims.AccountID()
	if err != nil {
		writeError(w, r, auth.ErrInvalidSession)
		return
	}

	summary, err := h.service.Profile(r.Context(), id)
	h.record("profile", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// decode reads a bounded JSON body into dst. Unknown fields are rejected
// so client typos fail loudly instead of silently dropping input.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}

// record counts one credential operation by outcome.
func (h *AuthHandler) record(operation string, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.metrics.AuthOperationsTotal.WithLabelValues(operation, outcome).Inc()
}
