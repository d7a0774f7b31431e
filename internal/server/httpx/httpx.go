// Package httpx holds the JSON request and response helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"orgsession/internal/platform/apperr"
)

const maxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into dest, rejecting unknown fields.
func DecodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return apperr.Validation("request body required")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body required")
		}
		return apperr.Validation("invalid request body: %s", err.Error())
	}
	return nil
}

// RespondJSON writes payload as JSON with status.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// StatusFor maps an error kind to its HTTP status. Unknown errors are 500.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindInvariantViolation:
		return http.StatusUnprocessableEntity
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// RespondError writes {"error": msg}. Server errors are logged and answered with a generic message.
func RespondError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		RespondJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	RespondJSON(w, status, map[string]string{"error": apperr.MessageOf(err), "code": string(apperr.KindOf(err))})
}
