package calendar

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscno/kalender/pkg/model"
)

// randomPosts spreads n posts over days days starting at from, to the minute.
func randomPosts(rng *rand.Rand, n int, from time.Time, days int) []model.Post {
	posts := make([]model.Post, n)
	for i := range posts {
		at := from.Add(time.Duration(rng.IntN(days*24*60)) * time.Minute)
		posts[i] = post(fmt.Sprintf("p%03d", i), at.UTC())
	}
	return posts
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func TestMonthGridCoversMonthOnce(t *testing.T) {
	for year := 1999; year <= 2032; year++ {
		for month := 0; month < 12; month++ {
			now := time.Date(year, 6, 15, 12, 0, 0, 0, tallinn)
			days := MonthGrid(year, month, now)
			first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, tallinn)
			inMonth := first.AddDate(0, 1, -1).Day()
			name := first.Format("2006-01")

			require.Zero(t, len(days)%7, name)
			require.GreaterOrEqual(t, len(days), 28, name)
			require.LessOrEqual(t, len(days), 42, name)
			assert.Equal(t, time.Monday, days[0].Date.Weekday(), name)
			assert.Equal(t, time.Sunday, days[len(days)-1].Date.Weekday(), name)

			seen := make(map[int]int)
			for i, d := range days {
				if i > 0 {
					y, m, dd := days[i-1].Date.Date()
					require.True(t, sameDate(time.Date(y, m, dd+1, 0, 0, 0, 0, tallinn), d.Date), "%s: gap after %s", name, days[i-1].Date)
				}
				matches := d.Date.Year() == first.Year() && d.Date.Month() == first.Month()
				assert.Equal(t, matches, d.IsCurrentMonth, "%s: %s", name, d.Date)
				if matches {
					seen[d.Date.Day()]++
				}
			}
			require.Len(t, seen, inMonth, name)
			for day, n := range seen {
				assert.Equal(t, 1, n, "%s: day %d", name, day)
			}
		}
	}
}

func TestPostsOnDayPartitionsGrid(t *testing.T) {
	rng := rand.New(rand.NewPCG(14, 3))
	for month := 0; month < 24; month++ {
		days := MonthGrid(2025, month, time.Date(2025, 3, 14, 12, 0, 0, 0, tallinn))
		start := days[0].Date
		y, m, d := days[len(days)-1].Date.Date()
		end := time.Date(y, m, d+1, 0, 0, 0, 0, tallinn)

		posts := randomPosts(rng, 120, start.AddDate(0, 0, -10), len(days)+20)
		var inSpan []string
		for _, p := range posts {
			if !p.Datetime.Before(start) && p.Datetime.Before(end) {
				inSpan = append(inSpan, p.ID)
			}
		}

		var found []string
		for _, day := range FillGrid(days, posts) {
			for _, p := range day.Posts {
				assert.True(t, sameDate(p.Datetime.In(tallinn), day.Date), "%s placed on %s", p.Datetime, day.Date)
				found = append(found, p.ID)
			}
		}
		slices.Sort(found)
		assert.Equal(t, inSpan, found, "month %d", month)
	}
}

func TestGroupByWeekPartitionsInput(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 1))
	for round := 0; round < 20; round++ {
		// around new year so ISO years differ from calendar years
		from := time.Date(2019+round%8, 12, 1, 0, 0, 0, 0, tallinn)
		posts := randomPosts(rng, 80, from, 70)

		groups := GroupByWeek(posts, tallinn)
		var flat []string
		for i, g := range groups {
			require.NotEmpty(t, g.Posts)
			if i > 0 {
				prev := groups[i-1]
				assert.True(t, prev.Year < g.Year || (prev.Year == g.Year && prev.Week < g.Week),
					"groups out of order: %d/%d then %d/%d", prev.Year, prev.Week, g.Year, g.Week)
			}
			for j, p := range g.Posts {
				y, w := p.Datetime.In(tallinn).ISOWeek()
				assert.Equal(t, [2]int{g.Year, g.Week}, [2]int{y, w}, p.ID)
				if j > 0 {
					assert.False(t, p.Datetime.Before(g.Posts[j-1].Datetime), "week %d not sorted", g.Week)
				}
				flat = append(flat, p.ID)
			}
		}

		want := ids(posts)
		slices.Sort(want)
		slices.Sort(flat)
		assert.Equal(t, want, flat, "round %d", round)
	}
}
