package account

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pawbyte/accounts/internal/apperror"
	"github.com/pawbyte/accounts/internal/middleware"
	"github.com/pawbyte/accounts/internal/session"
)

// mismatchReason is the uniform login failure reason. Unknown usernames
// and wrong passwords read identically so responses never confirm whether
// an account exists.
const mismatchReason = "Username/password mismatch"

// Handler handles HTTP requests for the users endpoints. Handlers are
// thin: they bind arguments, call the repository and session manager, and
// render the envelope.
type Handler struct {
	users    *Repository
	sessions *session.Manager
}

// NewHandler creates a users handler with the given dependencies.
func NewHandler(users *Repository, sessions *session.Manager) *Handler {
	return &Handler{users: users, sessions: sessions}
}

// userResponse is the public view of a user record.
type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Create registers a new account (GET|POST /api/v1/users/create).
func (h *Handler) Create(c echo.Context) error {
	args, err := middleware.BindArgs(c,
		middleware.Required("username"),
		middleware.Required("password"),
		middleware.Optional("avatar"),
	)
	if err != nil {
		return err
	}

	user, err := h.users.Create(c.Request().Context(), args["username"], args["password"], args["avatar"])
	if err != nil {
		return err
	}

	return middleware.Success(c, map[string]string{
		"id":       user.ID,
		"username": user.Username,
	})
}

// Login verifies credentials and issues a session
// (GET|POST /api/v1/users/login).
func (h *Handler) Login(c echo.Context) error {
	args, err := middleware.BindArgs(c,
		middleware.Required("username"),
		middleware.Required("password"),
	)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()

	user, err := h.users.Resolve(ctx, args["username"])
	if err != nil {
		return err
	}
	if user == nil {
		return apperror.NewUnauthorized(mismatchReason)
	}

	ok, err := h.users.IsPassword(ctx, user, args["password"])
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewUnauthorized(mismatchReason)
	}

	sess, err := h.sessions.Create(ctx, user.ID)
	if err != nil {
		return err
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return middleware.Success(c, map[string]string{
		"id":      user.ID,
		"session": sess.ID,
		"token":   sess.Token,
	})
}

// Get looks up a user by the id or username path parameter
// (POST /api/v1/users/find/:username, POST /api/v1/users/:id/get,
// authenticated). An unknown reference reports "Not found" against each
// parameter the caller supplied.
func (h *Handler) Get(c echo.Context) error {
	lookup := Lookup{
		ID:       c.Param("id"),
		Username: c.Param("username"),
	}

	user, err := h.users.Get(c.Request().Context(), lookup)
	if err != nil {
		return err
	}
	if user == nil {
		fields := map[string]string{}
		for _, name := range c.ParamNames() {
			fields[name] = "Not found"
		}
		return apperror.NewNotFound(fields)
	}

	return middleware.Success(c, userResponse{
		ID:       user.ID,
		Username: user.Username,
		Avatar:   user.Avatar,
	})
}

// updateResponse reports which parts of an update were applied.
type updateResponse struct {
	PasswordChanged bool   `json:"passwordChanged"`
	Avatar          string `json:"avatar,omitempty"`
}

// Update changes the session user's password and/or avatar
// (POST /api/v1/users/:id/update, authenticated). Only the user the
// session belongs to may be updated.
func (h *Handler) Update(c echo.Context) error {
	sess := session.GetSession(c)
	if sess == nil {
		return apperror.NewInvalidToken()
	}

	// Optional arguments: binding cannot fail.
	args, err := middleware.BindArgs(c,
		middleware.Optional("oldPassword"),
		middleware.Optional("newPassword"),
		middleware.Optional("avatar"),
	)
	if err != nil {
		return err
	}

	// Disallow other users from updating this user.
	if sess.UserID != c.Param("id") {
		return apperror.NewForbidden(map[string]string{"id": "Forbidden"})
	}

	ctx := c.Request().Context()

	user, err := h.users.Get(ctx, Lookup{ID: sess.UserID})
	if err != nil {
		return err
	}
	if user == nil {
		return apperror.NewNotFound(map[string]string{"id": "Not found"})
	}

	var result updateResponse

	oldPass, newPass := args["oldPassword"], args["newPassword"]
	if oldPass != "" && newPass != "" {
		changed, err := h.users.UpdatePassword(ctx, user, oldPass, newPass)
		if err != nil {
			return err
		}
		result.PasswordChanged = changed
	}

	if avatar := args["avatar"]; avatar != "" {
		if err := h.users.SetAvatar(ctx, user, avatar); err != nil {
			return err
		}
		result.Avatar = avatar
	}

	return middleware.Success(c, result)
}

// RegisterRoutes sets up the users routes on the given group. Read-only
// actions also accept GET for convenience; lookups and updates require an
// authenticated session.
//
// Create and login are rate-limited per IP to slow brute-force and
// credential stuffing.
func RegisterRoutes(g *echo.Group, h *Handler, gateway *session.Gateway) {
	auth := session.RequireAuth(gateway)

	g.GET("/create", h.Create, middleware.RateLimit(5, time.Minute))
	g.POST("/create", h.Create, middleware.RateLimit(5, time.Minute))
	g.GET("/login", h.Login, middleware.RateLimit(10, time.Minute))
	g.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))

	g.POST("/find/:username", h.Get, auth)
	g.POST("/:id/get", h.Get, auth)
	g.POST("/:id/update", h.Update, auth)
}
