package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mscno/kalender/pkg/model"
)

// Messages returned to clients. Details only go to the log.
const (
	msgServerError     = "Serveri viga"
	msgSecretMissing   = "Serveri viga: parool pole seadistatud"
	msgInvalidPassword = "Vale parool"
	msgNotFound        = "Postitust ei leitud"
	msgInvalidInput    = "Vigased andmed"
	msgBadRequest      = "Vigane päring"
)

// maxBodyBytes bounds JSON and form request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeStoreError maps store and validation errors to a status code.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidInput, Fields: verr.Fields})
	case errors.Is(err, ErrPostNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	default:
		s.logger.ErrorContext(r.Context(), "store operation failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
