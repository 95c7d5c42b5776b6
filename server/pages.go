package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mscno/kalender/pkg/calendar"
	"github.com/mscno/kalender/pkg/model"
	"github.com/mscno/kalender/pkg/session"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	login    *template.Template
	calendar *template.Template
	edit     *template.Template
}

var templateFuncs = template.FuncMap{
	"monthName":      calendar.MonthName,
	"weekdayName":    calendar.WeekdayName,
	"formatDate":     calendar.FormatDate,
	"formatDateTime": calendar.FormatDateTime,
	"isoDate":        func(t time.Time) string { return t.Format("2006-01-02") },
	"hasChannel": func(channels []model.Channel, c model.Channel) bool {
		for _, ch := range channels {
			if ch == c {
				return true
			}
		}
		return false
	},
	"firstN": func(n int, posts []model.Post) []model.Post {
		if len(posts) > n {
			return posts[:n]
		}
		return posts
	},
	"sub": func(a, b int) int { return a - b },
	"channels": func(channels []model.Channel) string {
		names := make([]string, len(channels))
		for i, c := range channels {
			names[i] = c.Icon() + " " + c.Name()
		}
		return strings.Join(names, ", ")
	},
	"in": func(loc *time.Location, t time.Time) time.Time {
		return t.In(loc)
	},
}

func parsePages() (*pages, error) {
	parse := func(name string) (*template.Template, error) {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/post_fields.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		return t, nil
	}
	login, err := parse("login.html")
	if err != nil {
		return nil, err
	}
	cal, err := parse("calendar.html")
	if err != nil {
		return nil, err
	}
	edit, err := parse("edit.html")
	if err != nil {
		return nil, err
	}
	return &pages{login: login, calendar: cal, edit: edit}, nil
}

// render executes the page into a buffer first so a template error never
// leaves a half written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, t *template.Template, status int, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.ErrorContext(r.Context(), "render page", "template", t.Name(), "error", err)
		http.Error(w, msgServerError, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type loginPage struct {
	Title string
	Error string
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/calendar", http.StatusTemporaryRedirect)
}

// handleLoginPage handles GET /login
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, s.pages.login, http.StatusOK, loginPage{Title: "Logi sisse"})
}

// handleLoginForm handles POST /login
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.render(w, r, s.pages.login, http.StatusBadRequest, loginPage{Title: "Logi sisse", Error: msgBadRequest})
		return
	}
	switch err := s.login(w, r, r.PostForm.Get("password")); {
	case errors.Is(err, session.ErrSecretNotConfigured):
		s.render(w, r, s.pages.login, http.StatusInternalServerError, loginPage{Title: "Logi sisse", Error: msgSecretMissing})
	case errors.Is(err, session.ErrInvalidPassword):
		s.render(w, r, s.pages.login, http.StatusUnauthorized, loginPage{Title: "Logi sisse", Error: msgInvalidPassword})
	default:
		http.Redirect(w, r, "/calendar", http.StatusSeeOther)
	}
}

// handleLogoutForm handles POST /logout
func (s *Server) handleLogoutForm(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, session.ClearCookie(s.cfg.Secure))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type monthRef struct {
	Year  int
	Month int
}

type calendarPage struct {
	CalendarMonth
	Title       string
	Prev        monthRef
	Next        monthRef
	Weekdays    []string
	Location    *time.Location
	Types       []model.PostType
	Channels    []model.Channel
	TimeOptions []string
	Form        model.PostForm
	Errors      map[string]string
	Notice      string
}

func (s *Server) calendarPage(r *http.Request, year, month int) (calendarPage, error) {
	cm, err := s.calendarMonth(r.Context(), year, month)
	if err != nil {
		return calendarPage{}, err
	}
	weekdays := make([]string, 7)
	for i := range weekdays {
		weekdays[i] = calendar.WeekdayShort(i)
	}
	prev := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	next := time.Date(year, time.Month(month+2), 1, 0, 0, 0, 0, time.UTC)
	return calendarPage{
		CalendarMonth: cm,
		Title:         fmt.Sprintf("%s %d", cm.MonthName, year),
		Prev:          monthRef{Year: prev.Year(), Month: int(prev.Month()) - 1},
		Next:          monthRef{Year: next.Year(), Month: int(next.Month()) - 1},
		Weekdays:      weekdays,
		Location:      s.cfg.Location,
		Types:         model.PostTypes,
		Channels:      model.Channels,
		TimeOptions:   model.TimeOptions(),
		Form: model.PostForm{
			Type: model.PostTypeOther,
			Date: s.now().Format("2006-01-02"),
			Time: model.DefaultTime,
		},
	}, nil
}

// handleCalendarPage handles GET /calendar
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	year, month := s.monthParams(r)
	page, err := s.calendarPage(r, year, month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "load calendar", "error", err)
		http.Error(w, msgServerError, http.StatusInternalServerError)
		return
	}
	page.Notice = r.URL.Query().Get("notice")
	s.render(w, r, s.pages.calendar, http.StatusOK, page)
}

func formFromRequest(r *http.Request) model.PostForm {
	f := r.PostForm
	channels := make([]model.Channel, 0, len(f["channels"]))
	for _, c := range f["channels"] {
		channels = append(channels, model.Channel(c))
	}
	return model.PostForm{
		Title:     f.Get("title"),
		Type:      model.PostType(f.Get("type")),
		Date:      f.Get("date"),
		Time:      f.Get("time"),
		Owner:     f.Get("owner"),
		Channels:  channels,
		Notes:     f.Get("notes"),
		Copy:      f.Get("copy"),
		Materials: f.Get("materials"),
	}
}

// calendarURL points back at the month a form was submitted from.
func calendarURL(year, month int, notice string) string {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("month", strconv.Itoa(month))
	if notice != "" {
		q.Set("notice", notice)
	}
	return "/calendar?" + q.Encode()
}

func (s *Server) formMonth(r *http.Request) (int, int) {
	now := s.now()
	year, err := strconv.Atoi(r.PostForm.Get("year"))
	if err != nil {
		year = now.Year()
	}
	month, err := strconv.Atoi(r.PostForm.Get("month"))
	if err != nil {
		month = int(now.Month()) - 1
	}
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, s.cfg.Location)
	return first.Year(), int(first.Month()) - 1
}

// handleCreateForm handles POST /calendar/posts
func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, msgBadRequest, http.StatusBadRequest)
		return
	}
	form := formFromRequest(r)
	created, err := s.createPost(r, form)

	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		year, month := s.formMonth(r)
		page, perr := s.calendarPage(r, year, month)
		if perr != nil {
			s.logger.ErrorContext(r.Context(), "load calendar", "error", perr)
			http.Error(w, msgServerError, http.StatusInternalServerError)
			return
		}
		page.Form = form
		page.Errors = verr.Fields
		s.render(w, r, s.pages.calendar, http.StatusBadRequest, page)
	case err != nil:
		s.logger.ErrorContext(r.Context(), "create post", "error", err)
		year, month := s.formMonth(r)
		http.Redirect(w, r, calendarURL(year, month, "Postituse lisamine ebaõnnestus"), http.StatusSeeOther)
	default:
		local := created.Datetime.In(s.cfg.Location)
		http.Redirect(w, r, calendarURL(local.Year(), int(local.Month())-1, "Postitus lisatud"), http.StatusSeeOther)
	}
}

// handleToggleDoneForm handles POST /calendar/posts/{id}/done
func (s *Server) handleToggleDoneForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, msgBadRequest, http.StatusBadRequest)
		return
	}
	year, month := s.formMonth(r)

	_, err := s.store.UpdatePost(r.Context(), s.cfg.Team, r.PathValue("id"), func(p model.Post) (model.Post, error) {
		p.Done = !p.Done
		return p, nil
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "toggle done", "id", r.PathValue("id"), "error", err)
		http.Redirect(w, r, calendarURL(year, month, "Uuendamine ebaõnnestus"), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, calendarURL(year, month, ""), http.StatusSeeOther)
}

// handleDeleteForm handles POST /calendar/posts/{id}/delete
func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, msgBadRequest, http.StatusBadRequest)
		return
	}
	year, month := s.formMonth(r)

	if err := s.store.DeletePost(r.Context(), s.cfg.Team, r.PathValue("id")); err != nil {
		s.logger.ErrorContext(r.Context(), "delete post", "id", r.PathValue("id"), "error", err)
		http.Redirect(w, r, calendarURL(year, month, "Kustutamine ebaõnnestus"), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, calendarURL(year, month, "Postitus kustutatud"), http.StatusSeeOther)
}

type editPage struct {
	Title       string
	ID          string
	Year        int
	Month       int
	Types       []model.PostType
	Channels    []model.Channel
	TimeOptions []string
	Form        model.PostForm
	Errors      map[string]string
}

// editPage returns to year/month (zero based) when the form is left or saved.
func (s *Server) editPage(id string, year, month int, form model.PostForm) editPage {
	opts := model.TimeOptions()
	if form.Time != "" && !slices.Contains(opts, form.Time) {
		opts = append(opts, form.Time)
		slices.Sort(opts)
	}
	return editPage{
		Title:       "Muuda: " + form.Title,
		ID:          id,
		Year:        year,
		Month:       month,
		Types:       model.PostTypes,
		Channels:    model.Channels,
		TimeOptions: opts,
		Form:        form,
	}
}

// handleEditPage handles GET /calendar/posts/{id}/edit
func (s *Server) handleEditPage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := s.store.GetPost(r.Context(), s.cfg.Team, id)
	if err != nil {
		now := s.now()
		if errors.Is(err, ErrPostNotFound) {
			http.Redirect(w, r, calendarURL(now.Year(), int(now.Month())-1, msgNotFound), http.StatusSeeOther)
			return
		}
		s.logger.ErrorContext(r.Context(), "load post", "id", id, "error", err)
		http.Error(w, msgServerError, http.StatusInternalServerError)
		return
	}
	local := p.Datetime.In(s.cfg.Location)
	s.render(w, r, s.pages.edit, http.StatusOK, s.editPage(id, local.Year(), int(local.Month())-1, p.Form(s.cfg.Location)))
}

// handleEditForm handles POST /calendar/posts/{id}
func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, msgBadRequest, http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	year, month := s.formMonth(r)
	form := formFromRequest(r)
	updated, err := s.updatePost(r, id, form.Patch())

	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		page := s.editPage(id, year, month, form)
		page.Errors = verr.Fields
		s.render(w, r, s.pages.edit, http.StatusBadRequest, page)
	case errors.Is(err, ErrPostNotFound):
		http.Redirect(w, r, calendarURL(year, month, msgNotFound), http.StatusSeeOther)
	case err != nil:
		s.logger.ErrorContext(r.Context(), "edit post", "id", id, "error", err)
		http.Redirect(w, r, calendarURL(year, month, "Uuendamine ebaõnnestus"), http.StatusSeeOther)
	default:
		local := updated.Datetime.In(s.cfg.Location)
		http.Redirect(w, r, calendarURL(local.Year(), int(local.Month())-1, "Postitus uuendatud"), http.StatusSeeOther)
	}
}
