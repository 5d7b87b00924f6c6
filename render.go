package storyline

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every successful JSON response.
type Envelope struct {
	Data any `json:"data"`
	Meta any `json:"meta,omitempty"`
}

// APIError is one entry of an error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope is the body of every failed JSON response.
type ErrorEnvelope struct {
	Errors []APIError `json:"errors"`
}

// Render writes data as an HTTP 200 JSON envelope.
func Render(c echo.Context, data any) error {
	return RenderStatus(c, http.StatusOK, data, nil)
}

// RenderStatus writes data and meta with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, data, meta any) error {
	return c.JSON(code, Envelope{Data: data, Meta: meta})
}

// RenderError writes a single-error envelope.
func RenderError(c echo.Context, status int, code, message string, details any) error {
	return c.JSON(status, ErrorEnvelope{Errors: []APIError{{Code: code, Message: message, Details: details}}})
}
