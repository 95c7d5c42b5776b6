// Package session implements the shared team password check and the cookie
// that marks a browser or CLI as logged in.
package session

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "kitten-session"
	// Value is the only value the session cookie ever carries.
	Value = "authenticated"
	// Duration is how long a login lasts.
	Duration = 8 * time.Hour
)

var (
	// ErrSecretNotConfigured is returned when the server has no team password.
	ErrSecretNotConfigured = errors.New("team password is not configured")
	// ErrInvalidPassword is returned when the submitted password does not match.
	ErrInvalidPassword = errors.New("invalid password")
)

// Authenticate compares password against the configured secret.
func Authenticate(secret, password string) error {
	if secret == "" {
		return ErrSecretNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(password)) != 1 {
		return ErrInvalidPassword
	}
	return nil
}

// NewCookie returns the session cookie issued at now.
func NewCookie(now time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    Value,
		Path:     "/",
		Expires:  now.Add(Duration),
		MaxAge:   int(Duration / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie returns a cookie that deletes the session cookie.
func ClearCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// FromRequest reports whether r carries a session cookie. Only presence is
// checked; the value is not verified.
func FromRequest(r *http.Request) bool {
	c, err := r.Cookie(CookieName)
	return err == nil && c.Value != ""
}
