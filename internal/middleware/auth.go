package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"policybolt/internal/util"

	"github.com/rs/zerolog"
)

type contextKey string

const (
	UserContextKey  = contextKey("user")
	EmailContextKey = contextKey("email")
)

// Error codes returned in the body of 401 responses. The dashboard signs the
// user out on token_expired.
const (
	CodeMissingToken = "missing_token"
	CodeInvalidToken = "invalid_token"
	CodeTokenExpired = "token_expired"
)

type authError struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func writeAuthError(w http.ResponseWriter, code, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(authError{Status: http.StatusUnauthorized, Code: code, Detail: detail})
}

func AuthMiddleware(jwtSecret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn().Str("path", r.URL.Path).Msg("Authorization header missing")
				writeAuthError(w, CodeMissingToken, "Authorization header missing")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn().Str("path", r.URL.Path).Msg("Invalid authorization header")
				writeAuthError(w, CodeInvalidToken, "Invalid authorization header")
				return
			}

			claims, err := util.ValidateJWT(parts[1], jwtSecret)
			if errors.Is(err, util.ErrTokenExpired) {
				logger.Info().Str("path", r.URL.Path).Msg("Expired token")
				writeAuthError(w, CodeTokenExpired, "Session expired, please sign in again")
				return
			}
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Invalid token")
				writeAuthError(w, CodeInvalidToken, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims.Subject)
			ctx = context.WithValue(ctx, EmailContextKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user id set by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserContextKey).(string)
	return id, ok && id != ""
}

// EmailFromContext returns the email claim of the authenticated user, if any.
func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(EmailContextKey).(string)
	return email
}
