package commands

import (
	"errors"
	"fmt"

	"github.com/mscno/kalender/pkg/calendar"
	"github.com/mscno/kalender/pkg/model"
)

type MonthCmd struct {
	clientFlags `embed:""`
	Month       string `arg:"" optional:"" help:"Month as YYYY-MM, defaults to the current month"`
}

func (c *MonthCmd) Run(ctx *cliCtx) error {
	loc, err := c.location()
	if err != nil {
		return err
	}
	now := ctx.Now().In(loc)
	year, month, err := parseMonth(c.Month, now)
	if err != nil {
		return err
	}
	cl, err := c.sessionClient(ctx)
	if err != nil {
		return err
	}
	from, to := calendar.MonthRange(year, month, loc)
	posts, err := cl.List(ctx, from, to)
	if err != nil {
		return err
	}
	days := calendar.FillGrid(calendar.MonthGrid(year, month, now), posts)
	renderMonth(ctx.Stdout, year, month, days)
	return nil
}

type WeeksCmd struct {
	clientFlags `embed:""`
	Month       string `arg:"" optional:"" help:"Month as YYYY-MM, defaults to the current month"`
}

func (c *WeeksCmd) Run(ctx *cliCtx) error {
	loc, err := c.location()
	if err != nil {
		return err
	}
	year, month, err := parseMonth(c.Month, ctx.Now().In(loc))
	if err != nil {
		return err
	}
	cl, err := c.sessionClient(ctx)
	if err != nil {
		return err
	}
	from, to := calendar.MonthRange(year, month, loc)
	posts, err := cl.List(ctx, from, to)
	if err != nil {
		return err
	}
	renderWeeks(ctx.Stdout, calendar.GroupByWeek(posts, loc), loc)
	return nil
}

type AddCmd struct {
	clientFlags `embed:""`
	Title       string          `arg:"" help:"Post title"`
	Type        model.PostType  `help:"Post type" default:"other" enum:"donation,video,event,adoption,news,lottery,collaboration,update,other"`
	Date        string          `help:"Date as YYYY-MM-DD, defaults to today"`
	Time        string          `help:"Time as HH:MM, defaults to ${default_time}"`
	Owner       string          `help:"Responsible person"`
	Channels    []model.Channel `help:"Channels to publish on" default:"facebook"`
	Notes       string          `help:"Notes"`
	Copy        string          `help:"Post copy"`
	Materials   string          `help:"Links to materials"`
}

func (c *AddCmd) Run(ctx *cliCtx) error {
	loc, err := c.location()
	if err != nil {
		return err
	}
	date := c.Date
	if date == "" {
		date = ctx.Now().In(loc).Format("2006-01-02")
	}
	cl, err := c.sessionClient(ctx)
	if err != nil {
		return err
	}
	p, err := cl.Create(ctx, model.PostForm{
		Title:     c.Title,
		Type:      c.Type,
		Date:      date,
		Time:      c.Time,
		Owner:     c.Owner,
		Channels:  c.Channels,
		Notes:     c.Notes,
		Copy:      c.Copy,
		Materials: c.Materials,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Stdout, postLine(p, loc))
	return nil
}

var errNothingToEdit = errors.New("nothing to change, pass at least one field flag")

type EditCmd struct {
	clientFlags `embed:""`
	ID          string          `arg:"" help:"Post id"`
	Title       *string         `help:"New title"`
	Type        *model.PostType `help:"New post type (donation, video, event, adoption, news, lottery, collaboration, update, other)"`
	Date        *string         `help:"New date as YYYY-MM-DD, keeps the time of day"`
	Time        *string         `help:"New time as HH:MM, keeps the date"`
	Owner       *string         `help:"New responsible person"`
	Channels    []model.Channel `help:"Replace the channels"`
	Notes       *string         `help:"New notes"`
	Copy        *string         `help:"New post copy"`
	Materials   *string         `help:"New links to materials"`
}

// patch holds only the flags that were given.
func (c *EditCmd) patch() model.PostPatch {
	p := model.PostPatch{
		Title:     c.Title,
		Type:      c.Type,
		Date:      c.Date,
		Time:      c.Time,
		Owner:     c.Owner,
		Notes:     c.Notes,
		Copy:      c.Copy,
		Materials: c.Materials,
	}
	if c.Channels != nil {
		channels := c.Channels
		p.Channels = &channels
	}
	return p
}

func (c *EditCmd) Run(ctx *cliCtx) error {
	patch := c.patch()
	if patch.IsEmpty() {
		return errNothingToEdit
	}
	loc, err := c.location()
	if err != nil {
		return err
	}
	cl, err := c.sessionClient(ctx)
	if err != nil {
		return err
	}
	p, err := cl.Update(ctx, c.ID, patch)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Stdout, postLine(p, loc))
	return nil
}

type DoneCmd struct {
	clientFlags `embed:""`
	ID          string `arg:"" help:"Post id"`
	Undo        bool   `help:"Mark the post not done instead"`
}

func (c *DoneCmd) Run(ctx *cliCtx) error {
	loc, err := c.location()
	if err != nil {
		return err
	}
	cl, err := c.sessionClient(ctx)
	if err != nil {
		return err
	}
	p, err := cl.Update(ctx, c.ID, model.DonePatch(!c.Undo))
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Stdout, postLine(p, loc))
	return nil
}

type RmCmd struct {
	clientFlags `embed:""`
	ID          string `arg:"" help:"Post id"`
}

func (c *RmCmd) Run(ctx *cliCtx) error {
	cl, err := c.sessionClient(ctx)
	if err != nil {
		return err
	}
	if err := cl.Remove(ctx, c.ID); err != nil {
		return err
	}
	fmt.Fprintln(ctx.Stdout, "Kustutatud", c.ID)
	return nil
}
