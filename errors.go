package storyline

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/storyline/comment"
	"github.com/eringen/storyline/post"
)

// Error codes used in the error envelope.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeNotFound     = "NOT_FOUND"
	CodeStorage      = "STORAGE_FAILED"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeBadRequest   = "BAD_REQUEST"
	CodeInternal     = "INTERNAL_ERROR"
)

// httpErrorHandler classifies err and renders it in the error envelope.
// Domain errors map to fixed statuses; anything unknown is logged and
// reported as a 500 without its message.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		verr *post.ValidationError
		serr *post.StorageError
		herr *echo.HTTPError
	)
	switch {
	case errors.As(err, &verr):
		_ = RenderError(c, http.StatusBadRequest, CodeValidation, verr.Message, map[string]string{"field": verr.Field})
	case errors.Is(err, post.ErrNotFound), errors.Is(err, comment.ErrNotFound):
		_ = RenderError(c, http.StatusNotFound, CodeNotFound, "not found", nil)
	case errors.As(err, &serr):
		a.Log.Error("storage failure",
			zap.String("op", serr.Op),
			zap.String("path", serr.Path),
			zap.Error(serr.Err),
			zap.String("uri", c.Request().RequestURI),
		)
		_ = RenderError(c, http.StatusInternalServerError, CodeStorage, "storage failure", nil)
	case errors.As(err, &herr):
		if herr.Code >= http.StatusInternalServerError {
			a.Log.Error("server error", zap.Error(err), zap.String("uri", c.Request().RequestURI))
		}
		_ = RenderError(c, herr.Code, httpCode(herr.Code), httpMessage(herr), nil)
	default:
		a.Log.Error("unhandled error", zap.Error(err), zap.String("uri", c.Request().RequestURI))
		_ = RenderError(c, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
	}
}

func httpCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusTooManyRequests:
		return CodeRateLimited
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return CodeBadRequest
}

func httpMessage(he *echo.HTTPError) string {
	if msg, ok := he.Message.(string); ok && msg != "" {
		return msg
	}
	return strings.ToLower(http.StatusText(he.Code))
}
