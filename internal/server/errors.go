package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/MeKo-Tech/petalscan/internal/raster"
	"github.com/MeKo-Tech/petalscan/internal/recognize"
	"github.com/MeKo-Tech/petalscan/internal/store"
	"github.com/MeKo-Tech/petalscan/internal/templates"
)

// errBadRequest marks malformed requests caught by the handlers themselves.
var errBadRequest = errors.New("bad request")

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, templates.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrUnsupportedInput):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, recognize.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest),
		errors.Is(err, templates.ErrInvalidCalibration),
		errors.Is(err, store.ErrInvalidSave),
		errors.Is(err, raster.ErrUnreadableDocument),
		errors.Is(err, raster.ErrNoPageImage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// fail writes err with its mapped status. Server-side failures are logged;
// their details stay out of the response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal server error"
	}
	writeError(w, status, msg)
}
