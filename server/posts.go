package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mscno/kalender/pkg/calendar"
	"github.com/mscno/kalender/pkg/model"
)

// monthParams reads the zero-based year/month query parameters, falling back
// to the current month. The result is normalized, so month=12 is next January.
func (s *Server) monthParams(r *http.Request) (year, month int) {
	now := s.now()
	year, month = now.Year(), int(now.Month())-1
	if v, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil {
		year = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("month")); err == nil {
		month = v
	}
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, s.cfg.Location)
	return first.Year(), int(first.Month()) - 1
}

// listRange returns the inclusive bounds requested by from/to or year/month.
func (s *Server) listRange(r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	if q.Has("from") || q.Has("to") {
		from, err := time.Parse(time.RFC3339, q.Get("from"))
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		to, err := time.Parse(time.RFC3339, q.Get("to"))
		if err != nil || to.Before(from) {
			return time.Time{}, time.Time{}, false
		}
		return from, to, true
	}
	year, month := s.monthParams(r)
	from, to := calendar.MonthRange(year, month, s.cfg.Location)
	return from, to, true
}

// handleListPosts handles GET /api/posts
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	from, to, ok := s.listRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	posts, err := s.store.ListPosts(r.Context(), s.cfg.Team, from, to)
	if err != nil {
		s.writeStoreError(w, r, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// handleCreatePost handles POST /api/posts
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var form model.PostForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	post, err := s.createPost(r, form)
	if err != nil {
		s.writeStoreError(w, r, "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) createPost(r *http.Request, form model.PostForm) (model.Post, error) {
	post, err := form.Parse(s.cfg.Location)
	if err != nil {
		return model.Post{}, err
	}
	post.Team = s.cfg.Team
	created, err := s.store.CreatePost(r.Context(), post)
	if err != nil {
		return model.Post{}, err
	}
	s.logger.InfoContext(r.Context(), "post created", "id", created.ID, "type", created.Type)
	return created, nil
}

// handleGetPost handles GET /api/posts/{id}
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.store.GetPost(r.Context(), s.cfg.Team, r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// handleUpdatePost handles PATCH /api/posts/{id}
func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var patch model.PostPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	post, err := s.updatePost(r, r.PathValue("id"), patch)
	if err != nil {
		s.writeStoreError(w, r, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// updatePost applies patch to the stored post. An empty patch returns the
// current row without writing.
func (s *Server) updatePost(r *http.Request, id string, patch model.PostPatch) (model.Post, error) {
	if patch.IsEmpty() {
		return s.store.GetPost(r.Context(), s.cfg.Team, id)
	}
	if err := patch.Validate(); err != nil {
		return model.Post{}, err
	}
	return s.store.UpdatePost(r.Context(), s.cfg.Team, id, func(p model.Post) (model.Post, error) {
		return patch.Apply(p, s.cfg.Location)
	})
}

// handleDeletePost handles DELETE /api/posts/{id}
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeletePost(r.Context(), s.cfg.Team, id); err != nil {
		s.writeStoreError(w, r, "delete", err)
		return
	}
	s.logger.InfoContext(r.Context(), "post deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}
