package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Every response leaves the service in the same envelope, whatever the
// handler: {"status": "success", "data": ...} on success and
// {"status": "fail", "reason": ...} on failure, where reason is either a
// plain string or a map keyed by the offending logical field. Game clients
// and tooling parse this shape, so it must not vary per endpoint.

// Success writes a success envelope wrapping the payload.
func Success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"data":   data,
	})
}

// Fail writes a failure envelope with the given HTTP status. reason is
// either a string or a map[string]string of per-field reasons.
func Fail(c echo.Context, code int, reason any) error {
	return c.JSON(code, map[string]any{
		"status": "fail",
		"reason": reason,
	})
}
