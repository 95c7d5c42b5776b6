package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rs/cors"
)

type corsLogger struct {
	logger *slog.Logger
}

func (c *corsLogger) Printf(format string, args ...interface{}) {
	c.logger.Debug(fmt.Sprintf("CORS: %s", fmt.Sprintf(format, args...)))
}

// WithCORS allows the given origins to call the JSON API with the session
// cookie. With no origins configured it is a no-op.
func WithCORS(logger *slog.Logger, origins []string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		if len(origins) == 0 {
			return h
		}
		middleware := cors.New(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			Logger:           &corsLogger{logger: logger},
		})
		return middleware.Handler(h)
	}
}
