/*
auth.go - Operator authentication

PURPOSE:
  Single-operator login. The server holds a bcrypt hash of the operator
  password; a successful login issues a short-lived HS256 JWT that the
  bearer middleware checks on every mutating and reporting route.

  When no password hash is configured, authentication is disabled and the
  middleware passes everything through. That is the development mode; the
  deployment notes cover turning it on.
*/
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Authenticator verifies the operator password and issues bearer tokens.
type Authenticator struct {
	passwordHash []byte
	secret       []byte
	tokenTTL     time.Duration
}

// NewAuthenticator returns nil when no password hash is configured, which
// disables authentication entirely.
func NewAuthenticator(passwordHash, secret string, ttl time.Duration) *Authenticator {
	if passwordHash == "" {
		return nil
	}
	return &Authenticator{
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		tokenTTL:     ttl,
	}
}

var errBadCredentials = errors.New("bad credentials")

// Login checks the password and returns a signed token with its expiry.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", time.Time{}, errBadCredentials
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator",
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (a *Authenticator) verify(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

// Middleware rejects requests without a valid bearer token. A nil
// Authenticator passes everything through.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		if err := a.verify(tokenString); err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
