package httpapi

import (
	"errors"
	"net/http"

	"signage-analytics/internal/domain"
	httpinfra "signage-analytics/internal/infra/http"
)

// writeError maps domain error kinds to HTTP statuses. Unexpected errors are
// logged and hidden from the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	errors.As(err, &de)
	field := domain.FieldOf(err)
	msg := err.Error()
	if de != nil {
		msg = de.Error()
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.ErrorResponse{Error: msg, Code: "invalid_input", Field: field})
	case errors.Is(err, domain.ErrNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, httpinfra.ErrorResponse{Error: msg, Code: "not_found", Field: field})
	case errors.Is(err, domain.ErrConflict):
		httpinfra.WriteError(w, http.StatusConflict, httpinfra.ErrorResponse{Error: msg, Code: "conflict", Field: field})
	default:
		h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Str("path", r.URL.Path).Msg("api: request failed")
		httpinfra.WriteError(w, http.StatusInternalServerError, httpinfra.ErrorResponse{Error: "internal error", Code: "internal"})
	}
}
