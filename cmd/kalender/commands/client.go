package commands

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mscno/kalender/pkg/client"
	"github.com/mscno/kalender/pkg/keyring"
)

// clientFlags are shared by every command that talks to a running service.
type clientFlags struct {
	Server   string `help:"URL of the kalender service" default:"http://localhost:8080" env:"KALENDER_SERVER"`
	Session  string `help:"Session cookie value, overrides the stored session" env:"KALENDER_SESSION"`
	Timezone string `help:"Time zone dates are shown in" default:"Europe/Tallinn" env:"KALENDER_TIMEZONE"`
}

func (f clientFlags) location() (*time.Location, error) {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", f.Timezone, err)
	}
	return loc, nil
}

// newClient returns a client without a session, for logging in.
func (f clientFlags) newClient(ctx *cliCtx) (*client.HTTPClient, error) {
	return client.NewHTTPClient(client.Config{ServerURL: f.Server, Logger: ctx.Logger})
}

// sessionClient returns a client carrying the --session value or the stored session.
func (f clientFlags) sessionClient(ctx *cliCtx) (*client.HTTPClient, error) {
	sess := f.Session
	if sess == "" {
		var err error
		sess, err = ctx.Keyring.Load(f.Server)
		if err != nil {
			return nil, err
		}
	}
	return client.NewHTTPClient(client.Config{ServerURL: f.Server, Session: sess, Logger: ctx.Logger})
}

// parseMonth reads YYYY-MM and returns the year and zero-based month.
// An empty value means the month of now.
func parseMonth(value string, now time.Time) (int, int, error) {
	if value == "" {
		return now.Year(), int(now.Month()) - 1, nil
	}
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return 0, 0, fmt.Errorf("month %q must look like 2025-03", value)
	}
	return t.Year(), int(t.Month()) - 1, nil
}

type LoginCmd struct {
	clientFlags `embed:""`
	Password    string `help:"Team password, read from stdin when empty" env:"TEAM_PASSWORD"`
}

func (c *LoginCmd) Run(ctx *cliCtx) error {
	password := c.Password
	if password == "" {
		line, err := bufio.NewReader(ctx.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimSpace(line)
	}
	cl, err := c.newClient(ctx)
	if err != nil {
		return err
	}
	value, err := cl.Login(ctx, password)
	if err != nil {
		return err
	}
	if err := ctx.Keyring.Save(c.Server, value); err != nil {
		return err
	}
	fmt.Fprintln(ctx.Stdout, "Sisse logitud")
	return nil
}

type LogoutCmd struct {
	clientFlags `embed:""`
}

func (c *LogoutCmd) Run(ctx *cliCtx) error {
	cl, err := c.sessionClient(ctx)
	switch {
	case errors.Is(err, keyring.ErrNoSession):
		// nothing stored, nothing to do
	case err != nil:
		return err
	default:
		if err := cl.Logout(ctx); err != nil {
			ctx.Logger.Warn("server logout failed", "error", err)
		}
	}
	if err := ctx.Keyring.Clear(c.Server); err != nil {
		return err
	}
	fmt.Fprintln(ctx.Stdout, "Välja logitud")
	return nil
}
