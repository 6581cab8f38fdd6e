// Package identity supplies the user key a VFS session is scoped to.
//
// The empty key means anonymous, local-only mode.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Anonymous is the user key of the local-only session.
const Anonymous = ""

// ErrInvalidToken is returned when a token fails verification.
var ErrInvalidToken = errors.New("invalid identity token")

// ErrInvalidKey is returned for user keys that cannot address a document.
var ErrInvalidKey = errors.New("invalid user key")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateKey checks that key is usable as a cache and document key.
// The anonymous key is valid.
func ValidateKey(key string) error {
	if key == Anonymous || keyPattern.MatchString(key) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidKey, key)
}

// Provider resolves the current user.
type Provider interface {
	UserKey(ctx context.Context) (string, error)
}

// Static always returns the same key.
type Static string

// UserKey implements Provider.
func (s Static) UserKey(context.Context) (string, error) {
	key := strings.TrimSpace(string(s))
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// Claims are the token claims the verifier reads. The subject is the user
// key.
type Claims struct {
	jwt.RegisteredClaims
}

// JWT verifies HMAC-signed tokens and takes the subject as the user key.
type JWT struct {
	secret []byte
	token  string
}

// NewJWT returns a provider for token, verified with secret. An empty
// token is the anonymous session.
func NewJWT(secret, token string) *JWT {
	return &JWT{secret: []byte(secret), token: strings.TrimSpace(token)}
}

// UserKey implements Provider.
func (j *JWT) UserKey(context.Context) (string, error) {
	if j.token == "" {
		return Anonymous, nil
	}
	return j.Verify(j.token)
}

// Verify checks tokenStr and returns its subject.
func (j *JWT) Verify(tokenStr string) (string, error) {
	if len(j.secret) == 0 {
		return "", fmt.Errorf("%w: no secret configured", ErrInvalidToken)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	sub := claims.Subject
	if sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if err := ValidateKey(sub); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return sub, nil
}

// Sign issues a token for userKey. Used by tests and the CLI's login
// helper.
func (j *JWT) Sign(userKey string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = userKey
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: claims})
	return token.SignedString(j.secret)
}
