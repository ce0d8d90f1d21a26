// Package apperror defines the error kinds shared by every layer.
//
// Each kind is a sentinel (ErrNotFound, ErrRecipientNotFound, ...) wrapped in
// an *AppError carrying a human-readable message. Callers branch with
// errors.Is(err, apperror.ErrX); handlers pull the message out with errors.As.
package apperror

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")

	// Status pipeline kinds.
	ErrRecipientNotFound     = errors.New("recipient not found")
	ErrTargetNotFound        = errors.New("follow target not found")
	ErrStorageUnavailable    = errors.New("storage unavailable")
	ErrShorteningUnavailable = errors.New("shortening unavailable")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error (driver, network)
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause, so errors.Is matches
// apperror.ErrStorageUnavailable as well as e.g. context.DeadlineExceeded.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func RateLimited(message string) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: message,
	}
}

// RecipientNotFound is returned when a direct message names a handle that
// does not resolve to a user.
func RecipientNotFound(handle string) *AppError {
	return &AppError{
		Err:     ErrRecipientNotFound,
		Message: fmt.Sprintf("no user named %q to send a direct message to", handle),
		Field:   "recipient",
	}
}

// TargetNotFound is returned when a follow command names an unknown handle.
func TargetNotFound(handle string) *AppError {
	return &AppError{
		Err:     ErrTargetNotFound,
		Message: fmt.Sprintf("no user named %q to follow", handle),
		Field:   "target",
	}
}

// StorageUnavailable wraps a transport or driver failure talking to the store.
func StorageUnavailable(cause error) *AppError {
	return &AppError{
		Err:     ErrStorageUnavailable,
		Message: "storage unavailable",
		Cause:   cause,
	}
}

// ShorteningUnavailable is never fatal: the annotator keeps the original URL.
func ShorteningUnavailable(url string, cause error) *AppError {
	return &AppError{
		Err:     ErrShorteningUnavailable,
		Message: fmt.Sprintf("could not shorten %s", url),
		Cause:   cause,
	}
}

// FromValidator converts validator.ValidationErrors into a ValidationError
// naming the first offending field. Other errors pass through unchanged.
func FromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return ValidationFailed(fe.Field(), fieldMessage(fe))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "email":
		return fe.Field() + " must be a valid email"
	case "url":
		return fe.Field() + " must be a valid URL"
	case "nickname":
		return fe.Field() + " may only contain letters, digits, '.', '_' and '-'"
	default:
		return fmt.Sprintf("%s failed validation %q", fe.Field(), fe.Tag())
	}
}
