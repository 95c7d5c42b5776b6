package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mscno/kalender/pkg/session"
)

const (
	LoginPath     = "/login"
	HomePath      = "/calendar"
	authAPIPrefix = "/api/auth/"
)

// WithSessionGuard redirects requests without a session cookie to the login
// page and logged in users away from it. Only the cookie's presence is checked.
// Auth endpoints are always let through.
func WithSessionGuard(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if strings.HasPrefix(path, authAPIPrefix) {
				next.ServeHTTP(w, r)
				return
			}
			loggedIn := session.FromRequest(r)
			if path == LoginPath {
				if loggedIn {
					http.Redirect(w, r, HomePath, http.StatusTemporaryRedirect)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if !loggedIn {
				logger.DebugContext(r.Context(), "no session, redirecting to login", "path", path)
				http.Redirect(w, r, LoginPath, http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
