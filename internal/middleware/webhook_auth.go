package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog"
)

// WebhookSecretHeader carries the shared secret on n8n callbacks.
const WebhookSecretHeader = "X-PolicyBolt-Secret"

// WebhookSecretMiddleware rejects requests whose shared secret header does not
// match. An empty configured secret denies every request.
func WebhookSecretMiddleware(secret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				logger.Error().Msg("Webhook secret middleware configured without a secret; requests will be denied")
				http.Error(w, "Configuration error: webhook secret not set", http.StatusInternalServerError)
				return
			}

			got := r.Header.Get(WebhookSecretHeader)
			if got == "" {
				logger.Warn().Str("path", r.URL.Path).Msg("Missing webhook secret header")
				http.Error(w, "Unauthorized: missing webhook secret", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logger.Warn().Str("path", r.URL.Path).Msg("Webhook secret mismatch")
				http.Error(w, "Forbidden: invalid webhook secret", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
