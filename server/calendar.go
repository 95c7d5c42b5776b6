package server

import (
	"context"
	"net/http"

	"github.com/mscno/kalender/pkg/calendar"
)

// CalendarMonth is one rendered month: the grid with posts attached and the
// same posts grouped by ISO week.
type CalendarMonth struct {
	Year      int                  `json:"year"`
	Month     int                  `json:"month"`
	MonthName string               `json:"month_name"`
	Days      []calendar.Day       `json:"days"`
	Weeks     []calendar.WeekGroup `json:"weeks"`
}

func (s *Server) calendarMonth(ctx context.Context, year, month int) (CalendarMonth, error) {
	from, to := calendar.MonthRange(year, month, s.cfg.Location)
	posts, err := s.store.ListPosts(ctx, s.cfg.Team, from, to)
	if err != nil {
		return CalendarMonth{}, err
	}
	posts = calendar.SortByDate(posts)
	return CalendarMonth{
		Year:      year,
		Month:     month,
		MonthName: calendar.MonthName(month),
		Days:      calendar.FillGrid(calendar.MonthGrid(year, month, s.now()), posts),
		Weeks:     calendar.GroupByWeek(posts, s.cfg.Location),
	}, nil
}

// handleCalendar handles GET /api/calendar
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	year, month := s.monthParams(r)
	cm, err := s.calendarMonth(r.Context(), year, month)
	if err != nil {
		s.writeStoreError(w, r, "calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, cm)
}
