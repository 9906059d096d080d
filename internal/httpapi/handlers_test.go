// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday/matchday/internal/auth"
	"github.com/matchday/matchday/internal/auth/authtest"
	"github.com/matchday/matchday/internal/httpapi"
)

// apiEnv is a full handler stack over in-memory doubles.
type apiEnv struct {
	router     http.Handler
	repo       *authtest.MemoryRepository
	dispatcher *authtest.RecordingDispatcher
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	codec, err := auth.NewTokenCodec([]byte("0123456789abcdef0123456789abcdef"), "matchday", time.Hour)
	require.NoError(t, err)

	repo := authtest.NewMemoryRepository()
	dispatcher := authtest.NewRecordingDispatcher()

	service, err := auth.NewCredentialService(repo, auth.NewArgon2idHasher(), codec, dispatcher, nil)
	require.NoError(t, err)

	server := httpapi.NewServer("", service, codec, auth.NewSlidingWindowLimiter(nil), nil)
	return &apiEnv{
		router:     server.Router(),
		repo:       repo,
		dispatcher: dispatcher,
	}
}

// do sends a JSON request through the router.
func (e *apiEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:52000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) register(t *testing.T) {
	t.Helper()
	rec := e.do(http.MethodPost, "/auth/register",
		`{"email":"alice@example.com","password":"password123","first_name":"Alice","last_name":"Smith"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *apiEnv) login(t *testing.T) string {
	t.Helper()
	rec := e.do(http.MethodPost, "/auth/login",
		`{"email":"alice@example.com","password":"password123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

func TestRegisterEndpoint(t *testing.T) {
	t.Run("creates account and returns sanitized user", func(t *testing.T) {
		env := newAPIEnv(t)

		rec := env.do(http.MethodPost, "/auth/register",
			`{"email":"Alice@Example.COM","password":"password123","first_name":"Alice","last_name":"Smith"}`, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var body struct {
			Message string `json:"message"`
			User    struct {
				Email         string `json:"email"`
				Role          string `json:"role"`
				EmailVerified bool   `json:"is_email_verified"`
			} `json:"user"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.Message)
		assert.Equal(t, "alice@example.com", body.User.Email)
		assert.Equal(t, "USER", body.User.Role)
		assert.False(t, body.User.EmailVerified)

		// Response must never leak the hash or the verification token.
		assert.NotContains(t, rec.Body.String(), "password")
		assert.NotContains(t, rec.Body.String(), env.dispatcher.Last().Token)
	})

	t.Run("duplicate email returns 409", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)

		rec := env.do(http.MethodPost, "/auth/register",
			`{"email":"alice@example.com","password":"password456","first_name":"A","last_name":"S"}`, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("short password returns 400", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(http.MethodPost, "/auth/register",
			`{"email":"alice@example.com","password":"short","first_name":"A","last_name":"S"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(http.MethodPost, "/auth/register", `{not json`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field returns 400", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(http.MethodPost, "/auth/register",
			`{"email":"alice@example.com","password":"password123","nickname":"al"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoginEndpoint(t *testing.T) {
	t.Run("valid credentials return a session token", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)
		token := env.login(t)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password returns 401", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)

		rec := env.do(http.MethodPost, "/auth/login",
			`{"email":"alice@example.com","password":"wrongpassword"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown email returns 401 with the same body as wrong password", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)

		wrongPass := env.do(http.MethodPost, "/auth/login",
			`{"email":"alice@example.com","password":"wrongpassword"}`, nil)
		unknown := env.do(http.MethodPost, "/auth/login",
			`{"email":"nobody@example.com","password":"password123"}`, nil)

		assert.Equal(t, wrongPass.Code, unknown.Code)
		assert.Equal(t, wrongPass.Body.String(), unknown.Body.String())
	})

	t.Run("missing fields return 400", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(http.MethodPost, "/auth/login", `{"email":"alice@example.com"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("sixth attempt in a minute returns 429 with Retry-After", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)

		for range 5 {
			rec := env.do(http.MethodPost, "/auth/login",
				`{"email":"alice@example.com","password":"wrongpassword"}`, nil)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		}

		rec := env.do(http.MethodPost, "/auth/login",
			`{"email":"alice@example.com","password":"password123"}`, nil)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})
}

func TestVerifyEmailEndpoint(t *testing.T) {
	t.Run("valid token verifies once", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)
		token := env.dispatcher.Last().Token

		rec := env.do(http.MethodPost, "/auth/verify-email", `{"token":"`+token+`"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(http.MethodPost, "/auth/verify-email", `{"token":"`+token+`"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown token returns 400", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(http.MethodPost, "/auth/verify-email", `{"token":"deadbeef"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestForgotResetPasswordEndpoints(t *testing.T) {
	t.Run("forgot-password body is identical for known and unknown emails", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)

		known := env.do(http.MethodPost, "/auth/forgot-password", `{"email":"alice@example.com"}`, nil)
		unknown := env.do(http.MethodPost, "/auth/forgot-password", `{"email":"nobody@example.com"}`, nil)

		assert.Equal(t, http.StatusOK, known.Code)
		assert.Equal(t, http.StatusOK, unknown.Code)
		assert.Equal(t, known.Body.String(), unknown.Body.String())
	})

	t.Run("reset-password installs the new password", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)

		rec := env.do(http.MethodPost, "/auth/forgot-password", `{"email":"alice@example.com"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		token := env.dispatcher.Last().Token

		rec = env.do(http.MethodPost, "/auth/reset-password",
			`{"token":"`+token+`","new_password":"newpassword1"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(http.MethodPost, "/auth/login",
			`{"email":"alice@example.com","password":"newpassword1"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("stale reset token returns 400", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(http.MethodPost, "/auth/reset-password",
			`{"token":"deadbeef","new_password":"newpassword1"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestOTPEndpoints(t *testing.T) {
	t.Run("send then verify issues a session", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)

		rec := env.do(http.MethodPost, "/auth/send-otp", `{"email":"alice@example.com"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		code := env.dispatcher.Last().Token

		rec = env.do(http.MethodPost, "/auth/verify-otp",
			`{"email":"alice@example.com","code":"`+code+`"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "access_token")
	})

	t.Run("send-otp for unknown email returns 404", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(http.MethodPost, "/auth/send-otp", `{"email":"nobody@example.com"}`, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong code returns 400", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)

		rec := env.do(http.MethodPost, "/auth/send-otp", `{"email":"alice@example.com"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		wrong := "000000"
		if env.dispatcher.Last().Token == wrong {
			wrong = "000001"
		}
		rec = env.do(http.MethodPost, "/auth/verify-otp",
			`{"email":"alice@example.com","code":"`+wrong+`"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProtectedEndpoints(t *testing.T) {
	t.Run("profile requires a bearer token", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(http.MethodGet, "/auth/profile", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage bearer token returns 401", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(http.MethodGet, "/auth/profile", "",
			map[string]string{"Authorization": "Bearer not.a.token"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("profile returns the sanitized account", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)
		token := env.login(t)

		rec := env.do(http.MethodGet, "/auth/profile", "",
			map[string]string{"Authorization": "Bearer " + token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body struct {
			Email string `json:"email"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "alice@example.com", body.Email)
	})

	t.Run("change-password with wrong current returns 400 and keeps the old password", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)
		token := env.login(t)

		rec := env.do(http.MethodPatch, "/auth/change-password",
			`{"current_password":"wrongpassword","new_password":"newpassword1"}`,
			map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(http.MethodPost, "/auth/login",
			`{"email":"alice@example.com","password":"password123"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("change-password with correct current succeeds", func(t *testing.T) {
		env := newAPIEnv(t)
		env.register(t)
		token := env.login(t)

		rec := env.do(http.MethodPatch, "/auth/change-password",
			`{"current_password":"password123","new_password":"newpassword1"}`,
			map[string]string{"Authorization": "Bearer " + token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(http.MethodPost, "/auth/login",
			`{"email":"alice@example.com","password":"newpassword1"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestInfrastructureFailuresAreHidden(t *testing.T) {
	env := newAPIEnv(t)
	env.register(t)
	env.repo.FailWith = assert.AnError

	rec := env.do(http.MethodPost, "/auth/login",
		`{"email":"alice@example.com","password":"password123"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}
