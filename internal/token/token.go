package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer issues and verifies the HS256 tokens used for sessions and
// password resets. The secret is injected at construction so no package
// reads it from the process environment.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// IssueSession returns a bearer token identifying the user. When
// remember is set the token lives for rememberTTL instead of sessionTTL
// ("remember me" login).
func (s *Signer) IssueSession(userID int64, remember bool, sessionTTL, rememberTTL time.Duration) (string, error) {
	ttl := sessionTTL
	if remember {
		ttl = rememberTTL
	}
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// IssueReset returns a password-reset token for the user, valid for ttl.
// Reset tokens are stateless: there is no revocation list, the token
// stays valid until its encoded expiry.
func (s *Signer) IssueReset(userID int64, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"reset_password": userID,
		"exp":            time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyReset returns the user id encoded in a reset token. Any decode
// failure (bad signature, expired, malformed, missing claim) yields
// (0, false) rather than an error; callers treat that as "invalid token".
func (s *Signer) VerifyReset(tokenStr string) (int64, bool) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	// jwt.Parse already checks exp, but its comparison admits tokens
	// expiring in the current second; a ttl of zero must never verify.
	exp, ok := claims["exp"].(float64)
	if !ok || !time.Now().Before(time.Unix(int64(exp), 0)) {
		return 0, false
	}
	id, ok := claims["reset_password"].(float64)
	if !ok || id <= 0 {
		return 0, false
	}
	return int64(id), true
}

// Secret exposes the raw signing key for the auth middleware.
func (s *Signer) Secret() []byte {
	return s.secret
}
