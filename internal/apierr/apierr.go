package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Code string

const (
	CodeValidation     Code = "validation"
	CodeNotFound       Code = "not_found"
	CodeUnauthorized   Code = "unauthorized"
	CodeInvalidSession Code = "invalid_session"
	CodeForbidden      Code = "forbidden"
	CodeInternal       Code = "internal"
)

// Error carries an HTTP status and a client-facing message. Err, when set,
// is the underlying cause and is never rendered.
type Error struct {
	Status         int
	Code           Code
	Message        string
	InvalidSession bool
	Err            error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: msg}
}

// InvalidSession tells the client to drop its local session and log in again.
func InvalidSession(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeInvalidSession, Message: msg, InvalidSession: true}
}

func Internal(msg string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: msg, Err: err}
}

// Envelope is the JSON body of every non-2xx response.
type Envelope struct {
	Error          string `json:"error"`
	InvalidSession bool   `json:"invalidSession,omitempty"`
}

// As extracts an *Error, wrapping anything else as internal.
func As(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal server error", err)
}

// Write renders err as the error envelope and aborts the chain.
func Write(c *gin.Context, err error) {
	apiErr := As(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(apiErr.Status, Envelope{Error: apiErr.Message, InvalidSession: apiErr.InvalidSession})
}
