package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mscno/kalender/pkg/session"
)

type loginRequest struct {
	Password string `json:"password"`
}

// handleLogin handles POST /api/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.logger.WarnContext(r.Context(), "malformed login request", "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	switch err := s.login(w, r, req.Password); {
	case errors.Is(err, session.ErrSecretNotConfigured):
		writeError(w, http.StatusInternalServerError, msgSecretMissing)
	case errors.Is(err, session.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, msgInvalidPassword)
	default:
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}

// login checks password and sets the session cookie on success.
func (s *Server) login(w http.ResponseWriter, r *http.Request, password string) error {
	err := session.Authenticate(s.cfg.Password, password)
	switch {
	case errors.Is(err, session.ErrSecretNotConfigured):
		s.logger.ErrorContext(r.Context(), "login attempted but no team password is configured")
		return err
	case err != nil:
		s.logger.InfoContext(r.Context(), "login failed", "remote_addr", r.RemoteAddr)
		return err
	}
	http.SetCookie(w, session.NewCookie(s.cfg.Now(), s.cfg.Secure))
	s.logger.InfoContext(r.Context(), "login", "remote_addr", r.RemoteAddr)
	return nil
}

// handleLogout handles POST /api/auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, session.ClearCookie(s.cfg.Secure))
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
