package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.etcd.io/bbolt"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/mscno/kalender/server"
	"github.com/mscno/kalender/server/middleware"
	"github.com/mscno/kalender/server/stores"
)

type ServeCmd struct {
	Addr       string `help:"Listen address" default:":8080" env:"KALENDER_ADDR"`
	Team       string `help:"Team whose posts are served" default:"${team}" env:"KALENDER_TEAM"`
	Password   string `help:"Shared team password" env:"TEAM_PASSWORD"`
	Production bool   `help:"Mark the session cookie Secure" env:"KALENDER_PRODUCTION"`
	Timezone   string `help:"Time zone of the calendar" default:"Europe/Tallinn" env:"KALENDER_TIMEZONE"`

	Store                string `help:"Post store back end" enum:"memory,bolt,datastore,postgres" default:"memory" env:"KALENDER_STORE"`
	BoltPath             string `help:"bbolt database file" default:"kalender.db" env:"KALENDER_BOLT_PATH"`
	DatastoreProject     string `help:"Google Cloud project of the Datastore" env:"DATASTORE_PROJECT"`
	DatastoreDatabase    string `help:"Datastore database id, empty for the default database" env:"DATASTORE_DATABASE"`
	DatastoreCredentials string `help:"Service account key file, defaults to application default credentials" env:"DATASTORE_CREDENTIALS"`
	PostgresDSN          string `name:"postgres-dsn" help:"Postgres connection string" env:"DATABASE_URL"`

	CORSOrigins []string `name:"cors-origins" help:"Origins allowed to call the API with credentials" env:"KALENDER_CORS_ORIGINS"`
	LoginRate   float64  `help:"Login attempts per second and client IP" default:"0.2" env:"KALENDER_LOGIN_RATE"`
	LoginBurst  int      `help:"Login attempt burst per client IP" default:"5" env:"KALENDER_LOGIN_BURST"`
}

func (c *ServeCmd) Run(ctx *cliCtx) error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("load time zone %q: %w", c.Timezone, err)
	}
	if c.Password == "" {
		ctx.Logger.Warn("TEAM_PASSWORD is not set, every login will fail")
	}

	feed := stores.NewFeed(ctx.Logger)
	defer feed.Close()
	store, closeStore, err := c.openStore(ctx, feed)
	if err != nil {
		return err
	}
	defer closeStore()

	limiter := middleware.NewRateLimiter(ctx.Logger, middleware.IPAddressKeyFunc, rate.Limit(c.LoginRate), c.LoginBurst,
		middleware.WithExceededHandler(http.HandlerFunc(tooManyLogins)))
	defer limiter.Stop()

	svc, err := server.NewServer(store, server.Config{
		Team:         c.Team,
		Password:     c.Password,
		Location:     loc,
		Secure:       c.Production,
		LoginLimiter: limiter.Limit,
	}, ctx.Logger)
	if err != nil {
		return err
	}

	srv := server.NewHTTPServer(c.Addr, ctx.Logger)
	srv.Use(
		middleware.WithRecovery(ctx.Logger),
		middleware.WithLogger(ctx.Logger),
		middleware.WithCORS(ctx.Logger, c.CORSOrigins),
		middleware.WithSessionGuard(ctx.Logger),
	)
	srv.Mount(svc.Register)

	ctx.Logger.Info("starting kalender", "addr", c.Addr, "store", c.Store, "team", c.Team, "timezone", c.Timezone)
	return srv.ListenAndServe(ctx)
}

func (c *ServeCmd) openStore(ctx *cliCtx, feed *stores.Feed) (server.PostStore, func(), error) {
	switch c.Store {
	case "bolt":
		db, err := bbolt.Open(c.BoltPath, 0o600, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt database %s: %w", c.BoltPath, err)
		}
		store, err := stores.NewPostBoltStore(db, feed)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil

	case "datastore":
		if c.DatastoreProject == "" {
			return nil, nil, fmt.Errorf("--datastore-project is required for the datastore store")
		}
		var opts []option.ClientOption
		if c.DatastoreCredentials != "" {
			opts = append(opts, option.WithCredentialsFile(c.DatastoreCredentials))
		}
		client, err := datastore.NewClientWithDatabase(ctx, c.DatastoreProject, c.DatastoreDatabase, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create datastore client: %w", err)
		}
		store := stores.NewPostDataStore(client, feed)
		return store, func() { _ = store.Close() }, nil

	case "postgres":
		if c.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("--postgres-dsn is required for the postgres store")
		}
		pool, err := pgxpool.New(ctx, c.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		store := stores.NewPostgresStore(pool, feed, ctx.Logger)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := store.Listen(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, func() {
			store.Close()
			pool.Close()
		}, nil

	default:
		ctx.Logger.Warn("using the in-memory store, posts are lost on restart")
		return stores.NewPostMemoryStore(feed), func() {}, nil
	}
}

func tooManyLogins(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "5")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Liiga palju katseid, proovi hiljem uuesti"})
}
