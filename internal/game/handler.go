package game

import (
	"github.com/labstack/echo/v4"

	"github.com/pawbyte/accounts/internal/account"
	"github.com/pawbyte/accounts/internal/apperror"
	"github.com/pawbyte/accounts/internal/middleware"
	"github.com/pawbyte/accounts/internal/session"
)

// Handler handles the game connect hand-off. Handlers are thin: they bind
// the request, call the services, and render the envelope. No business
// logic lives here.
type Handler struct {
	users      *account.Repository
	deriver    *TokenDeriver
	serverAddr string
}

// NewHandler creates a game handler with the given dependencies.
func NewHandler(users *account.Repository, deriver *TokenDeriver, serverAddr string) *Handler {
	return &Handler{users: users, deriver: deriver, serverAddr: serverAddr}
}

// connectResponse is the payload handed to a connecting client.
type connectResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Server   string `json:"server"`
	Token    string `json:"token"`
}

// Connect authorizes the session's user for a game connection
// (GET|POST /api/v1/game/connect, authenticated).
func (h *Handler) Connect(c echo.Context) error {
	sess := session.GetSession(c)
	if sess == nil {
		return apperror.NewInvalidToken()
	}

	user, err := h.users.Get(c.Request().Context(), account.Lookup{ID: sess.UserID})
	if err != nil {
		return err
	}
	if user == nil {
		return apperror.NewNotFound(map[string]string{"id": "Not found"})
	}

	return middleware.Success(c, connectResponse{
		ID:       user.ID,
		Username: user.Username,
		Avatar:   user.Avatar,
		Server:   h.serverAddr,
		Token:    h.deriver.Derive(user),
	})
}

// RegisterRoutes sets up the game routes on the given group. All of them
// require an authenticated session.
func RegisterRoutes(g *echo.Group, h *Handler, gateway *session.Gateway) {
	auth := session.RequireAuth(gateway)
	g.GET("/connect", h.Connect, auth)
	g.POST("/connect", h.Connect, auth)
}
