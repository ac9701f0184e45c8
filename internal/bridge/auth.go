package bridge

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SessionVerifier validates the session tokens windows present when
// connecting. Bridging only happens for authenticated sessions; the token is
// an explicit input at connect time, never read from ambient storage.
type SessionVerifier struct {
	secret []byte
}

// NewSessionVerifier creates a verifier for HMAC-signed session tokens.
func NewSessionVerifier(secret string) *SessionVerifier {
	return &SessionVerifier{secret: []byte(secret)}
}

// Verify checks the token signature and expiry and returns the session's
// user ID.
func (v *SessionVerifier) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid session token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("session token missing subject")
	}
	return sub, nil
}
