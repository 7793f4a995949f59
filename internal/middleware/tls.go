package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireTLS returns middleware that rejects requests not carrying
// X-Forwarded-Proto: https. The service always runs behind a TLS-
// terminating reverse proxy in real deployments; credentials must never
// transit plaintext hops in front of it. Disabled in development, where
// there is no proxy.
func RequireTLS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-Forwarded-Proto") != "https" {
				return Fail(c, http.StatusUpgradeRequired, "Encryption required")
			}
			return next(c)
		}
	}
}
