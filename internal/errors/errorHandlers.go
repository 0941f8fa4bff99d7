// File: chat_relay_go_backend/internal/errors/errorHandlers.go

package errors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeBadRequest          ErrorType = "BAD_REQUEST"
	ErrorTypeQuotaExceeded       ErrorType = "QUOTA_EXCEEDED"
	ErrorTypeUpstream            ErrorType = "UPSTREAM_ERROR"
	ErrorTypeInternalServerError ErrorType = "INTERNAL_SERVER_ERROR"
)

// CustomError carries the HTTP status and the client-facing message of a
// failure. Internal holds the diagnostic cause, which is logged but never
// sent to the client.
type CustomError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Internal   error
}

// Error implements the error interface
func (e *CustomError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Internal
}

func newError(errType ErrorType, message string, statusCode int, internal error) *CustomError {
	return &CustomError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// New400Error creates a new bad request error
func New400Error(message string) *CustomError {
	return newError(ErrorTypeBadRequest, message, http.StatusBadRequest, nil)
}

// New429Error creates a quota error. The message is shown to the user as a
// regular chat reply.
func New429Error(reply string) *CustomError {
	return newError(ErrorTypeQuotaExceeded, reply, http.StatusTooManyRequests, nil)
}

// NewUpstreamError creates an error for a failed or empty model response
func NewUpstreamError(message string, internal error) *CustomError {
	return newError(ErrorTypeUpstream, message, http.StatusInternalServerError, internal)
}

// New500Error creates a new internal server error
func New500Error(internal error) *CustomError {
	return newError(ErrorTypeInternalServerError, "Something went wrong", http.StatusInternalServerError, internal)
}

// AsCustomError converts any error into a CustomError, wrapping unknown
// errors as internal server errors.
func AsCustomError(err error) *CustomError {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr
	}
	return New500Error(err)
}

// HandleError handles the custom error and sends an appropriate JSON response.
// Upstream failures are logged where they happen, with their session context.
func HandleError(c *gin.Context, err error) {
	customErr := AsCustomError(err)

	switch customErr.Type {
	case ErrorTypeInternalServerError:
		log.Error().
			Err(customErr.Internal).
			Str("type", string(customErr.Type)).
			Str("url", c.Request.URL.String()).
			Msg(customErr.Message)
	}

	if customErr.Type == ErrorTypeQuotaExceeded {
		c.JSON(customErr.StatusCode, gin.H{"reply": customErr.Message})
		return
	}
	c.JSON(customErr.StatusCode, gin.H{"error": customErr.Message})
}
