package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/mscno/kalender/pkg/keyring"
	"github.com/mscno/kalender/pkg/model"
)

type cliCtx struct {
	context.Context
	Logger  *slog.Logger
	Keyring *keyring.SessionStore
	Stdin   io.Reader
	Stdout  io.Writer
	Now     func() time.Time
}

type cli struct {
	LogFormat string `help:"Log output format" enum:"text,json" default:"text" env:"KALENDER_LOG_FORMAT"`
	Debug     bool   `help:"Enable debug logging" short:"v"`

	Serve   ServeCmd         `cmd:"" help:"Run the calendar service"`
	Login   LoginCmd         `cmd:"" help:"Log in with the team password"`
	Logout  LogoutCmd        `cmd:"" help:"Log out and forget the stored session"`
	Month   MonthCmd         `cmd:"" help:"Show the month grid"`
	Weeks   WeeksCmd         `cmd:"" help:"List the month's posts by week"`
	Add     AddCmd           `cmd:"" help:"Add a post"`
	Edit    EditCmd          `cmd:"" help:"Change fields of a post"`
	Done    DoneCmd          `cmd:"" help:"Mark a post done"`
	Rm      RmCmd            `cmd:"" help:"Delete a post"`
	Watch   WatchCmd         `cmd:"" help:"Follow a month live"`
	Version kong.VersionFlag `help:"Show version"`
}

func Execute(version string) {
	// a missing .env is fine
	_ = godotenv.Load()

	var cli cli
	kctx := kong.Parse(&cli,
		kong.UsageOnError(),
		kong.Name("kalender"),
		kong.Description("Kitten Help marketing calendar"),
		kong.Vars{"version": version, "team": model.TeamName, "default_time": model.DefaultTime},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := kctx.Run(&cliCtx{
		Context: ctx,
		Logger:  newLogger(os.Stderr, cli.LogFormat, cli.Debug),
		Keyring: keyring.NewSessionStore(keyring.OS()),
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Now:     time.Now,
	})
	stop()
	kctx.FatalIfErrorf(err)
}

func newLogger(w io.Writer, format string, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
