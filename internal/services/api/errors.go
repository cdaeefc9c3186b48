package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/NordCoder/pingboard/internal/domain/snapshot"
	"github.com/NordCoder/pingboard/internal/domain/target"
	"github.com/NordCoder/pingboard/internal/services/monitor"
)

var errBadJSON = errors.New("malformed JSON body")

func statusOf(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, errBadJSON),
		errors.As(err, &verrs),
		errors.Is(err, target.ErrBadTarget),
		errors.Is(err, target.ErrInvalidInterval),
		errors.Is(err, target.ErrEmptyName):
		return http.StatusBadRequest
	case errors.Is(err, snapshot.ErrInvalidFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, target.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, monitor.ErrNotActive), errors.Is(err, monitor.ErrPaused):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, code, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
