package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-michi/michi"

	"github.com/mscno/kalender/pkg/model"
)

// Config holds the per deployment settings of the service.
type Config struct {
	// Team scopes every store call.
	Team string
	// Password is the shared team secret. Empty means logins fail with a server error.
	Password string
	// Location is used for all calendar math and form dates.
	Location *time.Location
	// Secure marks the session cookie Secure.
	Secure bool
	// LoginLimiter wraps the login endpoints when set.
	LoginLimiter func(http.Handler) http.Handler
	// Now defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Team == "" {
		c.Team = model.TeamName
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.LoginLimiter == nil {
		c.LoginLimiter = func(h http.Handler) http.Handler { return h }
	}
	return c
}

// Server serves the calendar pages, the JSON API and the change feed.
type Server struct {
	store  PostStore
	cfg    Config
	logger *slog.Logger
	pages  *pages
}

func NewServer(store PostStore, cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Server{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger,
		pages:  p,
	}, nil
}

func (s *Server) now() time.Time {
	return s.cfg.Now().In(s.cfg.Location)
}

// Register adds all routes to r.
func (s *Server) Register(r *michi.Router) {
	limit := s.cfg.LoginLimiter

	r.Handle("POST /api/auth/login", limit(http.HandlerFunc(s.handleLogin)))
	r.HandleFunc("POST /api/auth/logout", s.handleLogout)

	r.HandleFunc("GET /{$}", s.handleRoot)
	r.HandleFunc("GET /login", s.handleLoginPage)
	r.Handle("POST /login", limit(http.HandlerFunc(s.handleLoginForm)))
	r.HandleFunc("POST /logout", s.handleLogoutForm)
	r.HandleFunc("GET /calendar", s.handleCalendarPage)
	r.HandleFunc("POST /calendar/posts", s.handleCreateForm)
	r.HandleFunc("GET /calendar/posts/{id}/edit", s.handleEditPage)
	r.HandleFunc("POST /calendar/posts/{id}", s.handleEditForm)
	r.HandleFunc("POST /calendar/posts/{id}/done", s.handleToggleDoneForm)
	r.HandleFunc("POST /calendar/posts/{id}/delete", s.handleDeleteForm)

	r.HandleFunc("GET /api/posts", s.handleListPosts)
	r.HandleFunc("POST /api/posts", s.handleCreatePost)
	r.HandleFunc("GET /api/posts/changes", s.handleChanges)
	r.HandleFunc("GET /api/posts/{id}", s.handleGetPost)
	r.HandleFunc("PATCH /api/posts/{id}", s.handleUpdatePost)
	r.HandleFunc("DELETE /api/posts/{id}", s.handleDeletePost)
	r.HandleFunc("GET /api/calendar", s.handleCalendar)
}
