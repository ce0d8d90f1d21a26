package handler

// Every error response has the same shape:
//
//	{"error": "recipient_not_found", "message": "no user with nickname ghost", "field": ""}
//
// writeError is the single place where apperror kinds become HTTP statuses.

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/middleware"
)

const maxBodyBytes = 16 << 10

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorMapping struct {
	kind   error
	status int
	code   string
}

// Checked in order; the first kind found in the chain wins.
var errorMappings = []errorMapping{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrRecipientNotFound, http.StatusUnprocessableEntity, "recipient_not_found"},
	{apperror.ErrTargetNotFound, http.StatusUnprocessableEntity, "target_not_found"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{apperror.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
	{apperror.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{apperror.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
	{apperror.ErrShorteningUnavailable, http.StatusServiceUnavailable, "shortening_unavailable"},
}

func (b base) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all that is left is to log.
			b.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

// statusFor returns the HTTP status and error code for err.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError never exposes the message of an unknown error: it may carry
// SQL, file paths or driver details.
func (b base) writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)

	var appErr *apperror.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		b.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	b.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// base is embedded by every handler for logging and error responses.
type base struct {
	logger logrus.FieldLogger
}

// fail logs server-side failures with the request ID and writes the error.
func (b base) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := statusFor(err); status >= http.StatusInternalServerError {
		b.logger.WithError(err).WithFields(logrus.Fields{
			"requestID": middleware.RequestIDFromContext(r.Context()),
			"path":      r.URL.Path,
		}).Error("request failed")
	}
	b.writeError(w, err)
}

// decodeJSON reads a JSON body of at most maxBodyBytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return apperror.ValidationFailed("body", "request body too large")
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is empty")
		default:
			return apperror.ValidationFailed("body", "invalid JSON body")
		}
	}
	return nil
}
