package calendar

import "time"

var weekdays = [7]string{
	"Esmaspäev",
	"Teisipäev",
	"Kolmapäev",
	"Neljapäev",
	"Reede",
	"Laupäev",
	"Pühapäev",
}

var weekdaysShort = [7]string{"E", "T", "K", "N", "R", "L", "P"}

var months = [12]string{
	"Jaanuar",
	"Veebruar",
	"Märts",
	"Aprill",
	"Mai",
	"Juuni",
	"Juuli",
	"August",
	"September",
	"Oktoober",
	"November",
	"Detsember",
}

// WeekdayIndex is the Monday-first index (0..6) of t's weekday.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func WeekdayName(t time.Time) string {
	return weekdays[WeekdayIndex(t)]
}

// WeekdayShort returns the one letter abbreviation for a Monday-first index.
func WeekdayShort(i int) string {
	return weekdaysShort[((i%7)+7)%7]
}

// MonthName returns the name of a zero-based month index; out of range
// indexes wrap around the year.
func MonthName(month int) string {
	return months[((month%12)+12)%12]
}

func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

func FormatTime(t time.Time) string {
	return t.Format("15:04")
}

func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}
