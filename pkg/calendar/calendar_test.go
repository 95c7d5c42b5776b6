package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscno/kalender/pkg/model"
)

var tallinn = mustLoad("Europe/Tallinn")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func post(id string, t time.Time) model.Post {
	return model.Post{ID: id, Title: id, Datetime: t, Time: t.Format("15:04")}
}

func TestMonthGrid(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, tallinn)

	t.Run("march 2025", func(t *testing.T) {
		days := MonthGrid(2025, 2, now)
		require.Len(t, days, 42)
		assert.Equal(t, time.Date(2025, 2, 24, 0, 0, 0, 0, tallinn), days[0].Date)
		assert.Equal(t, time.Date(2025, 4, 6, 0, 0, 0, 0, tallinn), days[41].Date)
		assert.False(t, days[0].IsCurrentMonth)
		assert.True(t, days[5].IsCurrentMonth)

		var today []time.Time
		for _, d := range days {
			if d.IsToday {
				today = append(today, d.Date)
			}
		}
		assert.Equal(t, []time.Time{time.Date(2025, 3, 14, 0, 0, 0, 0, tallinn)}, today)
	})

	t.Run("four week month", func(t *testing.T) {
		days := MonthGrid(2021, 1, now)
		require.Len(t, days, 28)
		for _, d := range days {
			assert.True(t, d.IsCurrentMonth)
			assert.False(t, d.IsToday)
		}
	})

	t.Run("month rolls back into previous year", func(t *testing.T) {
		days := MonthGrid(2025, -1, now)
		require.Len(t, days, 42)
		assert.Equal(t, time.Date(2024, 11, 25, 0, 0, 0, 0, tallinn), days[0].Date)
		assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, tallinn), days[41].Date)
		assert.True(t, days[6].IsCurrentMonth)
		assert.Equal(t, 1, days[6].Date.Day())
		assert.Equal(t, time.December, days[6].Date.Month())
	})

	t.Run("month rolls forward into next year", func(t *testing.T) {
		days := MonthGrid(2024, 12, now)
		assert.Equal(t, MonthGrid(2025, 0, now), days)
	})

	t.Run("weeks start on monday", func(t *testing.T) {
		for m := 0; m < 12; m++ {
			days := MonthGrid(2026, m, now)
			assert.Zero(t, len(days)%7)
			assert.Equal(t, time.Monday, days[0].Date.Weekday())
			assert.Equal(t, time.Sunday, days[len(days)-1].Date.Weekday())
		}
	})
}

func TestMonthRange(t *testing.T) {
	from, to := MonthRange(2025, 1, tallinn)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, tallinn), from)
	assert.Equal(t, time.Date(2025, 2, 28, 23, 59, 59, 999999999, tallinn), to)
}

func TestPostsOnDay(t *testing.T) {
	posts := []model.Post{
		post("late", time.Date(2025, 3, 14, 23, 30, 0, 0, tallinn)),
		post("other", time.Date(2025, 3, 15, 0, 0, 0, 0, tallinn)),
		post("early", time.Date(2025, 3, 14, 6, 0, 0, 0, tallinn)),
	}

	got := PostsOnDay(posts, time.Date(2025, 3, 14, 0, 0, 0, 0, tallinn))
	require.Len(t, got, 2)
	assert.Equal(t, "late", got[0].ID)
	assert.Equal(t, "early", got[1].ID)

	// 23:30 in Tallinn is still the 14th even though UTC says 21:30
	utc := PostsOnDay(posts, time.Date(2025, 3, 15, 0, 0, 0, 0, tallinn))
	require.Len(t, utc, 1)
	assert.Equal(t, "other", utc[0].ID)

	assert.Empty(t, PostsOnDay(nil, time.Now()))
}

func TestFillGrid(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, tallinn)
	days := MonthGrid(2025, 2, now)
	filled := FillGrid(days, []model.Post{post("a", time.Date(2025, 3, 3, 18, 0, 0, 0, tallinn))})

	require.Len(t, filled, len(days))
	assert.Nil(t, days[7].Posts)
	require.Len(t, filled[7].Posts, 1)
	assert.Equal(t, "a", filled[7].Posts[0].ID)
}

func TestSortByDate(t *testing.T) {
	at := time.Date(2025, 3, 14, 18, 0, 0, 0, tallinn)
	posts := []model.Post{
		post("c", at.Add(time.Hour)),
		post("a", at),
		post("b", at),
	}
	sorted := SortByDate(posts)
	assert.Equal(t, []string{"a", "b", "c"}, ids(sorted))
	assert.Equal(t, "c", posts[0].ID)
}

func TestWeekOf(t *testing.T) {
	y, w := WeekOf(time.Date(2024, 12, 31, 10, 0, 0, 0, tallinn))
	assert.Equal(t, 2025, y)
	assert.Equal(t, 1, w)

	y, w = WeekOf(time.Date(2021, 1, 3, 10, 0, 0, 0, tallinn))
	assert.Equal(t, 2020, y)
	assert.Equal(t, 53, w)
}

func TestWeekBounds(t *testing.T) {
	mon, sun := WeekBounds(time.Date(2025, 3, 16, 20, 0, 0, 0, tallinn))
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, tallinn), mon)
	assert.Equal(t, time.Date(2025, 3, 16, 0, 0, 0, 0, tallinn), sun)
}

func TestGroupByWeek(t *testing.T) {
	posts := []model.Post{
		post("feb", time.Date(2023, 2, 2, 18, 0, 0, 0, tallinn)),
		post("jan", time.Date(2023, 1, 30, 9, 0, 0, 0, tallinn)),
		post("next", time.Date(2023, 2, 6, 9, 0, 0, 0, tallinn)),
		post("sun", time.Date(2023, 2, 5, 23, 0, 0, 0, tallinn)),
	}

	groups := GroupByWeek(posts, tallinn)
	require.Len(t, groups, 2)

	assert.Equal(t, 2023, groups[0].Year)
	assert.Equal(t, 5, groups[0].Week)
	assert.Equal(t, "30-5.2", groups[0].DateRange)
	assert.Equal(t, []string{"jan", "feb", "sun"}, ids(groups[0].Posts))

	assert.Equal(t, 6, groups[1].Week)
	assert.Equal(t, "6-12.2", groups[1].DateRange)
	assert.Equal(t, []string{"next"}, ids(groups[1].Posts))
}

func TestGroupByWeekUsesISOYear(t *testing.T) {
	posts := []model.Post{
		post("new-year", time.Date(2025, 1, 2, 9, 0, 0, 0, tallinn)),
		post("dec", time.Date(2024, 12, 31, 9, 0, 0, 0, tallinn)),
		post("before", time.Date(2024, 12, 27, 9, 0, 0, 0, tallinn)),
	}

	groups := GroupByWeek(posts, tallinn)
	require.Len(t, groups, 2)
	assert.Equal(t, 2024, groups[0].Year)
	assert.Equal(t, 52, groups[0].Week)
	assert.Equal(t, 2025, groups[1].Year)
	assert.Equal(t, 1, groups[1].Week)
	assert.Equal(t, "30-5.1", groups[1].DateRange)
	assert.Equal(t, []string{"dec", "new-year"}, ids(groups[1].Posts))
}

func TestGroupByWeekEmpty(t *testing.T) {
	assert.Empty(t, GroupByWeek(nil, tallinn))
}

func TestFormatting(t *testing.T) {
	at := time.Date(2025, 3, 4, 7, 5, 0, 0, tallinn)
	assert.Equal(t, "04.03.2025", FormatDate(at))
	assert.Equal(t, "07:05", FormatTime(at))
	assert.Equal(t, "04.03.2025 07:05", FormatDateTime(at))
	assert.Equal(t, "Teisipäev", WeekdayName(at))
	assert.Equal(t, "Pühapäev", WeekdayName(time.Date(2025, 3, 9, 0, 0, 0, 0, tallinn)))
	assert.Equal(t, "E", WeekdayShort(0))
	assert.Equal(t, "P", WeekdayShort(6))
	assert.Equal(t, "Jaanuar", MonthName(0))
	assert.Equal(t, "Detsember", MonthName(-1))
	assert.Equal(t, "Jaanuar", MonthName(12))
}

func ids(posts []model.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}
