package commands

import (
	"fmt"

	"github.com/mscno/kalender/pkg/calendar"
	"github.com/mscno/kalender/pkg/model"
	"github.com/mscno/kalender/pkg/view"
)

type WatchCmd struct {
	clientFlags `embed:""`
	Month       string `arg:"" optional:"" help:"Month as YYYY-MM, defaults to the current month"`
}

func (c *WatchCmd) Run(ctx *cliCtx) error {
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

	s, err := view.Open(ctx, cl, year, month,
		view.WithLocation(loc),
		view.WithLogger(ctx.Logger),
		view.WithOnChange(func(posts []model.Post) {
			fmt.Fprintf(ctx.Stdout, "--- %s %d ---\n", calendar.MonthName(month), year)
			renderWeeks(ctx.Stdout, calendar.GroupByWeek(posts, loc), loc)
		}),
		view.WithNotifier(func(n view.Notice) {
			if n.Failed() {
				ctx.Logger.Warn(n.Message, "error", n.Err)
				return
			}
			ctx.Logger.Info(n.Message)
		}),
	)
	defer s.Close()
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
