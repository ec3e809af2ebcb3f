// Package apierr defines the error kinds returned by foodgram services and
// maps them onto HTTP responses.
package apierr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"gorm.io/gorm"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthenticated  = errors.New("authentication required")
)

// Error carries a kind, a client-facing message and, for validation
// failures, the offending field.
type Error struct {
	Kind    error
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// Validation returns a validation error for field.
func Validation(field, msg string) error {
	return &Error{Kind: ErrValidation, Field: field, Message: msg}
}

// Conflict returns an error for a pair or key that already exists.
func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// NotFound returns an error for a missing resource.
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// PermissionDenied returns an error for a caller who may not act on a resource.
func PermissionDenied(msg string) error {
	return &Error{Kind: ErrPermissionDenied, Message: msg}
}

// Unauthenticated returns an error for an anonymous caller on a protected action.
func Unauthenticated(msg string) error {
	return &Error{Kind: ErrUnauthenticated, Message: msg}
}

// OrNotFound turns gorm.ErrRecordNotFound into a NotFound with msg and
// returns any other error unchanged.
func OrNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(msg)
	}
	return err
}

// Status maps err onto an HTTP status code.
// Conflicts are reported as 400 to match the public API contract.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err as a JSON error body and aborts the request.
func Respond(c *gin.Context, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		logging.Ctx(c.Request.Context()).Error().Err(err).
			Str("path", c.Request.URL.Path).
			Msg("Request failed")
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		body := gin.H{"error": apiErr.Message}
		if apiErr.Field != "" {
			body["field"] = apiErr.Field
		}
		c.AbortWithStatusJSON(status, body)
		return
	}

	// gorm.ErrRecordNotFound without a domain message
	c.AbortWithStatusJSON(status, gin.H{"error": "not found"})
}
