package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"policybolt/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-jwt-secret-test-jwt-secret-test"

func token(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := util.Claims{
		Email: "owner@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func protected(t *testing.T) http.Handler {
	mw := AuthMiddleware(secret, zerolog.Nop())
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "user-123", id)
		assert.Equal(t, "owner@example.com", EmailFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) authError {
	t.Helper()
	var body authError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"valid", "Bearer " + token(t, time.Now().Add(time.Hour)), http.StatusNoContent, ""},
		{"missing", "", http.StatusUnauthorized, CodeMissingToken},
		{"malformed", "Token abc", http.StatusUnauthorized, CodeInvalidToken},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized, CodeInvalidToken},
		{"expired", "Bearer " + token(t, time.Now().Add(-time.Hour)), http.StatusUnauthorized, CodeTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			protected(t).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decode(t, rec).Code)
			}
		})
	}
}

func TestWebhookSecretMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) })

	tests := []struct {
		name       string
		configured string
		header     string
		want       int
	}{
		{"match", "s3cret", "s3cret", http.StatusAccepted},
		{"missing", "s3cret", "", http.StatusUnauthorized},
		{"mismatch", "s3cret", "nope", http.StatusForbidden},
		{"unconfigured", "", "anything", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/n8n/policies", nil)
			if tt.header != "" {
				req.Header.Set(WebhookSecretHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			WebhookSecretMiddleware(tt.configured, zerolog.Nop())(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestLoggerMiddlewarePassesThrough(t *testing.T) {
	h := LoggerMiddleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
