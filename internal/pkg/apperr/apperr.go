// Package apperr defines the error taxonomy shared by all handlers and maps
// it onto HTTP responses. Every error response is either a single message
// ({"error": "..."}) or a list of field violations ({"errors": [...]}); the
// shape is decided here, never in individual handlers.
package apperr

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	// ErrNotFound covers both truly absent records and records owned by
	// another user. The two cases must stay indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is returned for unknown emails and for wrong
	// passwords alike, so failed logins cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized signals a missing, malformed or unverifiable session.
	ErrUnauthorized = errors.New("unauthorized")
)

// FieldError names one invalid input field and why it was rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejects client input. With Fields set it renders as a
// field-tagged errors array; otherwise Message renders as a single error.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return strings.Join(parts, "; ")
}

// ConflictError rejects an input that violates a uniqueness constraint.
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Field + ": " + e.Message
}

// Write translates err into the HTTP response. Unrecognized errors become a
// generic 500; their detail is logged server-side and never echoed.
func Write(c *gin.Context, logger *slog.Logger, err error) {
	var verr *ValidationError
	var cerr *ConflictError
	switch {
	case errors.As(err, &verr):
		if len(verr.Fields) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
		}
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, gin.H{"errors": []FieldError{{Field: cerr.Field, Message: cerr.Message}}})
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		if logger != nil {
			logger.Error("internal error", slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
