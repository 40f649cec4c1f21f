// Package handler exposes the order engine over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"hostbot/internal/model"
	"hostbot/internal/notify"
	"hostbot/internal/provisioning"
	"hostbot/internal/resilience"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes a standardised error body.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, model.ErrorResponse{
		Error:         code,
		Message:       message,
		CorrelationID: chimw.GetReqID(r.Context()),
	})
}

// decodeJSON reads the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body")
		return false
	}
	return true
}

// respondError maps a domain error onto a status code and error code.
// Unexpected errors are logged and reported without detail.
func respondError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	var (
		validation *model.ValidationError
		notFound   *model.NotFoundError
		illegal    *model.IllegalTransitionError
		external   *resilience.ExternalCallError
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, validation.Error())
	case errors.As(err, &notFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, notFound.Error())
	case errors.As(err, &illegal):
		writeError(w, r, http.StatusConflict, model.ErrCodeIllegalTransition, illegal.Error())
	case errors.Is(err, provisioning.ErrInProgress):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
	case errors.Is(err, notify.ErrEmptyTemplate):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error())
	case errors.As(err, &external):
		logger.Warn().Err(err).Str("path", r.URL.Path).Msg("external call failed")
		writeError(w, r, http.StatusBadGateway, model.ErrCodeExternalCall, external.Error())
	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("handler error")
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
	}
}
