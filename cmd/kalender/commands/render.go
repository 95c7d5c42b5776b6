package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mscno/kalender/pkg/calendar"
	"github.com/mscno/kalender/pkg/model"
)

const emptyMonth = "Selles kuus pole veel postitusi."

// renderMonth prints the grid one week per line. Days of neighbouring months
// show as a dot, today is starred and the post count follows in parentheses.
func renderMonth(w io.Writer, year, month int, days []calendar.Day) {
	fmt.Fprintf(w, "%s %d\n", calendar.MonthName(month), year)

	var b strings.Builder
	for i := 0; i < 7; i++ {
		fmt.Fprintf(&b, "%2s%5s", calendar.WeekdayShort(i), "")
	}
	fmt.Fprintln(w, strings.TrimRight(b.String(), " "))

	for start := 0; start < len(days); start += 7 {
		b.Reset()
		for _, d := range days[start:min(start+7, len(days))] {
			b.WriteString(dayCell(d))
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}

func dayCell(d calendar.Day) string {
	num := "."
	if d.IsCurrentMonth {
		num = fmt.Sprint(d.Date.Day())
	}
	mark := " "
	if d.IsToday {
		mark = "*"
	}
	count := ""
	if n := len(d.Posts); n > 0 && d.IsCurrentMonth {
		count = fmt.Sprintf("(%d)", n)
	}
	return fmt.Sprintf("%2s%s%-4s", num, mark, count)
}

func renderWeeks(w io.Writer, groups []calendar.WeekGroup, loc *time.Location) {
	if len(groups) == 0 {
		fmt.Fprintln(w, emptyMonth)
		return
	}
	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Nädal %d (%s)\n", g.Week, g.DateRange)
		for _, p := range g.Posts {
			fmt.Fprintf(w, "  %s\n", postLine(p, loc))
		}
	}
}

func postLine(p model.Post, loc *time.Location) string {
	local := p.Datetime.In(loc)
	status := "[ ]"
	if p.Done {
		status = "[x]"
	}
	parts := []string{
		fmt.Sprintf("%s %s (%s) %s %s %s", status, calendar.FormatDate(local), calendar.WeekdayName(local),
			p.Time, p.Type.Emoji(), p.Title),
	}
	if p.Owner != "" {
		parts = append(parts, "Vastutab: "+p.Owner)
	}
	names := make([]string, len(p.Channels))
	for i, c := range p.Channels {
		names[i] = c.Name()
	}
	parts = append(parts, strings.Join(names, ", "), p.ID)
	return strings.Join(parts, " · ")
}
