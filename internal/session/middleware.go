package session

import (
	"github.com/labstack/echo/v4"

	"github.com/pawbyte/accounts/internal/middleware"
)

// contextKeySession stores the authenticated session in the Echo context.
// Handlers downstream read it via GetSession.
const contextKeySession = "auth_session"

// RequireAuth returns middleware that authenticates the request through
// the gateway. The _session and _token arguments may arrive in the body,
// query string, or path, like every other argument. On failure the
// gateway's error propagates to the central error handler.
func RequireAuth(gateway *Gateway) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			args, err := middleware.BindArgs(c,
				middleware.Required("_session"),
				middleware.Required("_token"),
			)
			if err != nil {
				return err
			}

			s, err := gateway.Authenticate(c.Request().Context(), args["_session"], args["_token"])
			if err != nil {
				return err
			}

			c.Set(contextKeySession, s)
			return next(c)
		}
	}
}

// GetSession retrieves the authenticated session from the Echo context.
// Returns nil if the request is not authenticated (middleware not applied).
func GetSession(c echo.Context) *Session {
	s, ok := c.Get(contextKeySession).(*Session)
	if !ok {
		return nil
	}
	return s
}
