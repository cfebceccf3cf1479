package featureapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/logger"
)

// Response is the envelope of every JSON body.
type Response struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateView is the JSON form of a feature state.
type StateView struct {
	Feature    string            `json:"feature"`
	Enabled    bool              `json:"enabled"`
	Strategy   string            `json:"strategy,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// NewStateView converts s for output.
func NewStateView(s *feature.State) StateView {
	params := s.Parameters()
	if len(params) == 0 {
		params = nil
	}
	return StateView{
		Feature:    s.Feature().Name(),
		Enabled:    s.Enabled(),
		Strategy:   s.StrategyID(),
		Parameters: params,
	}
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrValidation),
		errors.Is(err, feature.ErrInvalidState),
		errors.Is(err, feature.ErrInvalidParameter):
		return http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, feature.ErrUnsupported):
		return http.StatusNotImplemented, "not_implemented"
	case errors.Is(err, feature.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	a.logger.Log(r.Context(), level, "feature request failed",
		slog.String("method", r.Method),
		logger.Path(r.URL.Path),
		slog.Int("status", status),
		logger.Error(err),
	)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	writeJSON(w, status, Response{Error: &ErrorDetail{Code: code, Message: message}})
}
