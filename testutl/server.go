// Package testutl holds helpers shared by the server, client and CLI tests.
package testutl

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/mscno/kalender/server"
	"github.com/mscno/kalender/server/middleware"
	"github.com/mscno/kalender/server/stores"
)

// Password is the team password every test server is configured with.
const Password = "nurruke"

// Tallinn is the location the service runs in.
var Tallinn = mustLoad("Europe/Tallinn")

// Now is the fixed wall clock of test servers: Friday 14 March 2025, 10:00 in Tallinn.
var Now = time.Date(2025, time.March, 14, 10, 0, 0, 0, Tallinn)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Env is a fully wired server backed by the memory store.
type Env struct {
	Store   *stores.PostMemoryStore
	Handler http.Handler
	Config  server.Config
}

// NewEnv builds the handler chain the way the serve command does. opts may
// adjust the config before the server is created.
func NewEnv(t *testing.T, opts ...func(*server.Config)) *Env {
	t.Helper()
	logger := Logger()
	cfg := server.Config{
		Team:     "test-team",
		Password: Password,
		Location: Tallinn,
		Now:      FixedClock(Now),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	feed := stores.NewFeed(logger)
	t.Cleanup(feed.Close)
	store := stores.NewPostMemoryStore(feed)

	srv, err := server.NewServer(store, cfg, logger)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	hs := server.NewHTTPServer("", logger)
	hs.Use(middleware.WithRecovery(logger), middleware.WithSessionGuard(logger))
	hs.Mount(srv.Register)

	return &Env{Store: store, Handler: hs, Config: cfg}
}

// Start serves the environment on a local listener until the test ends.
func (e *Env) Start(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(e.Handler)
	t.Cleanup(ts.Close)
	return ts
}
