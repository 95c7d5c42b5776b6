// Package calendar turns a flat list of dated posts into month grids and
// ISO week groups. Weeks start on Monday and week 1 is the week containing
// January 4th. All functions are pure.
package calendar

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/mscno/kalender/pkg/model"
)

// Day is one cell of a month grid.
type Day struct {
	Date           time.Time    `json:"date"`
	IsCurrentMonth bool         `json:"is_current_month"`
	IsToday        bool         `json:"is_today"`
	Posts          []model.Post `json:"posts"`
}

// WeekGroup holds the posts of one ISO week.
type WeekGroup struct {
	Year      int          `json:"year"`
	Week      int          `json:"week"`
	DateRange string       `json:"date_range"`
	Posts     []model.Post `json:"posts"`
}

// MonthGrid returns the days of the Monday-to-Sunday weeks covering the given
// month. month is zero-based and rolls over like time.Date does. Days are
// midnights in now's location and IsToday is evaluated against now.
func MonthGrid(year, month int, now time.Time) []Day {
	loc := now.Location()
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)

	start := mondayOf(first)
	end := mondayOf(last).AddDate(0, 0, 6)

	ty, tm, td := now.Date()
	var days []Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		y, m, dd := d.Date()
		days = append(days, Day{
			Date:           d,
			IsCurrentMonth: y == first.Year() && m == first.Month(),
			IsToday:        y == ty && m == tm && dd == td,
		})
	}
	return days
}

// MonthRange returns the first instant of the month and the last instant of
// its last day, both inclusive.
func MonthRange(year, month int, loc *time.Location) (time.Time, time.Time) {
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, loc)
	return first, first.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// FillGrid attaches to every day the posts that fall on it.
func FillGrid(days []Day, posts []model.Post) []Day {
	out := make([]Day, len(days))
	for i, d := range days {
		d.Posts = PostsOnDay(posts, d.Date)
		out[i] = d
	}
	return out
}

// PostsOnDay returns the posts whose datetime falls on the calendar date of
// date, read in date's location. Input order is preserved.
func PostsOnDay(posts []model.Post, date time.Time) []model.Post {
	y, m, d := date.Date()
	var out []model.Post
	for _, p := range posts {
		py, pm, pd := p.Datetime.In(date.Location()).Date()
		if py == y && pm == m && pd == d {
			out = append(out, p)
		}
	}
	return out
}

// SortByDate returns a copy of posts ordered by datetime. Posts with equal
// datetimes keep their relative order.
func SortByDate(posts []model.Post) []model.Post {
	out := slices.Clone(posts)
	slices.SortStableFunc(out, func(a, b model.Post) int {
		return a.Datetime.Compare(b.Datetime)
	})
	return out
}

// WeekOf returns the ISO year and week of t in t's location.
func WeekOf(t time.Time) (year, week int) {
	return t.ISOWeek()
}

// WeekBounds returns midnight of the Monday and of the Sunday of t's week.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	monday := mondayOf(t)
	return monday, monday.AddDate(0, 0, 6)
}

// GroupByWeek buckets posts by the ISO week of their datetime in loc.
// Groups are ordered by (year, week), posts inside a group by datetime.
func GroupByWeek(posts []model.Post, loc *time.Location) []WeekGroup {
	type key struct{ year, week int }
	index := make(map[key]int)
	var groups []WeekGroup

	for _, p := range SortByDate(posts) {
		local := p.Datetime.In(loc)
		y, w := WeekOf(local)
		k := key{y, w}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, WeekGroup{Year: y, Week: w, DateRange: weekRange(local)})
		}
		groups[i].Posts = append(groups[i].Posts, p)
	}

	slices.SortFunc(groups, func(a, b WeekGroup) int {
		return cmp.Or(cmp.Compare(a.Year, b.Year), cmp.Compare(a.Week, b.Week))
	})
	return groups
}

// weekRange renders the Monday-Sunday span of t as "d-d.M".
func weekRange(t time.Time) string {
	start, end := WeekBounds(t)
	return fmt.Sprintf("%d-%d.%d", start.Day(), end.Day(), int(end.Month()))
}

func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}
