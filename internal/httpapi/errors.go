// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/matchday/matchday/internal/auth"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Message string `json:"message"`
}

// messageResponse is the uniform success body for operations that return
// no data.
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps a domain error onto an HTTP status. Sentinel errors get
// their public message; anything unclassified is an infrastructure failure
// and is hidden behind a generic 503 so internals never leak to clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, public := classify(err)

	if status == http.StatusServiceUnavailable {
		slog.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
		)
	}

	writeJSON(w, status, errorResponse{Message: public})
}

// classify picks the status and outward message for an error.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, auth.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrInvalidSession):
		return http.StatusUnauthorized, auth.ErrInvalidSession.Error()
	case errors.Is(err, auth.ErrDuplicateAccount):
		return http.StatusConflict, auth.ErrDuplicateAccount.Error()
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, auth.ErrNotFound.Error()
	case errors.Is(err, auth.ErrAlreadyVerified):
		return http.StatusBadRequest, auth.ErrAlreadyVerified.Error()
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusBadRequest, auth.ErrInvalidToken.Error()
	case errors.Is(err, auth.ErrNoOTPPending):
		return http.StatusBadRequest, auth.ErrNoOTPPending.Error()
	case errors.Is(err, auth.ErrOTPExpired):
		return http.StatusBadRequest, auth.ErrOTPExpired.Error()
	case errors.Is(err, auth.ErrInvalidOTP):
		return http.StatusBadRequest, auth.ErrInvalidOTP.Error()
	case errors.Is(err, auth.ErrIncorrectPassword):
		return http.StatusBadRequest, auth.ErrIncorrectPassword.Error()
	case errors.Is(err, auth.ErrRateLimited):
		return http.StatusTooManyRequests, auth.ErrRateLimited.Error()
	case isValidationError(err):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusServiceUnavailable, "service temporarily unavailable"
}

// isValidationError reports whether the error came from boundary
// validation of client input. Those carry their message to the client.
func isValidationError(err error) bool {
	var o oops.OopsError
	if !errors.As(err, &o) {
		return false
	}
	switch o.Code() {
	case "ACCOUNT_INVALID_EMAIL", "ACCOUNT_INVALID_PASSWORD", "REQUEST_INVALID":
		return true
	}
	return false
}

// badRequest builds a boundary validation error.
func badRequest(message string) error {
	return oops.Code("REQUEST_INVALID").Errorf("%s", message)
}
