package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned by ValidateJWT for well-formed tokens whose exp
// claim has passed. Callers use it to force a sign-out.
var ErrTokenExpired = errors.New("token expired")

// Claims is the subset of a Supabase access token the API relies on.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

var (
	hmacMethods  = []string{"HS256", "HS384", "HS512"}
	rsaMethods   = []string{"RS256", "RS384", "RS512"}
	ecdsaMethods = []string{"ES256", "ES384", "ES512"}
)

// verificationKey picks the key and the algorithms it may verify from the
// configured material. A PEM block is a public key; anything else is the
// project's HMAC secret. Tokens are never verified with a public key used as
// an HMAC secret.
func verificationKey(keyMaterial string) (any, []string, error) {
	if !strings.Contains(keyMaterial, "-----BEGIN") {
		return []byte(keyMaterial), hmacMethods, nil
	}
	if key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(keyMaterial)); err == nil {
		return key, rsaMethods, nil
	}
	key, err := jwt.ParseECPublicKeyFromPEM([]byte(keyMaterial))
	if err != nil {
		return nil, nil, fmt.Errorf("public key is neither RSA nor ECDSA: %w", err)
	}
	return key, ecdsaMethods, nil
}

// ValidateJWT verifies a Supabase access token against the shared secret or a
// PEM public key and requires exp and sub.
func ValidateJWT(tokenString string, keyMaterial string) (*Claims, error) {
	key, methods, err := verificationKey(keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("failed to load verification key: %w", err)
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("failed to validate token: %w", err)
	case claims.Subject == "":
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
