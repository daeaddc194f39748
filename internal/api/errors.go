package api

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"redstring/internal/analytics"
	"redstring/internal/apierr"
	"redstring/internal/content"
	"redstring/internal/progress"
	"redstring/internal/user"
)

const sessionExpiredMsg = "Your session has expired. Please log in again."

// toAPIError maps domain errors onto the HTTP taxonomy.
func toAPIError(err error) *apierr.Error {
	var apiErr *apierr.Error
	var vErr *content.ValidationError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &vErr):
		return apierr.Validation(sentence(vErr.Message))
	case errors.Is(err, progress.ErrInvalidSession), errors.Is(err, user.ErrUserNotFound):
		return apierr.InvalidSession(sessionExpiredMsg)
	case errors.Is(err, progress.ErrInvalidProgress), errors.Is(err, analytics.ErrInvalidEvent):
		return apierr.Validation(sentence(err.Error()))
	case errors.Is(err, content.ErrSectionsNotFound):
		return apierr.NotFound("One or more sections not found")
	case errors.Is(err, content.ErrChapterNotFound):
		return apierr.NotFound("Chapter not found")
	case errors.Is(err, content.ErrSectionNotFound):
		return apierr.NotFound("Section not found")
	case errors.Is(err, content.ErrPageNotFound):
		return apierr.NotFound("Page not found")
	default:
		return apierr.Internal("Internal server error", err)
	}
}

func fail(c *gin.Context, err error) {
	apierr.Write(c, toAPIError(err))
}

func badRequest(c *gin.Context, msg string) {
	apierr.Write(c, apierr.Validation(msg))
}

func sentence(msg string) string {
	msg = strings.TrimSpace(msg)
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
