// Package app is the application bootstrap and dependency injection root.
// It creates and holds the shared infrastructure (primary store, cache
// store, Echo instance) and wires together the account, session, and game
// components.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pawbyte/accounts/internal/account"
	"github.com/pawbyte/accounts/internal/apperror"
	"github.com/pawbyte/accounts/internal/config"
	"github.com/pawbyte/accounts/internal/game"
	"github.com/pawbyte/accounts/internal/middleware"
	"github.com/pawbyte/accounts/internal/session"
	"github.com/pawbyte/accounts/internal/store"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main and used to register all routes. The
// store handles live here for the process's lifetime — components receive
// them by injection, never as ambient singletons.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// Primary is the durable document store holding user records.
	Primary store.Primary

	// Cache is the Redis store holding sessions and cached user records.
	Cache store.Cache

	// Echo is the HTTP server instance.
	Echo *echo.Echo

	// Users is the account repository shared by the handlers.
	Users *account.Repository

	// Sessions issues and resolves login sessions.
	Sessions *session.Manager

	// Gateway authenticates requests against live sessions.
	Gateway *session.Gateway
}

// New creates a new App instance with the given dependencies and
// configures the Echo server with global middleware and error handling.
func New(cfg *config.Config, primary store.Primary, cache store.Cache) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Trust the usual private ranges so c.RealIP() resolves the actual
	// client behind the reverse proxy.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",    // Localhost
		"10.0.0.0/8",     // Docker default bridge
		"172.16.0.0/12",  // Docker bridge (alternate range)
		"192.168.0.0/16", // Common LAN
		"fd00::/8",       // IPv6 private
	})

	hasher := account.NewHasher(cfg.Auth.HashSecret)
	users := account.NewRepository(primary, cache, hasher)
	sessions := session.NewManager(cache, cfg.Auth.SessionTTL)
	gateway := session.NewGateway(sessions)

	app := &App{
		Config:   cfg,
		Primary:  primary,
		Cache:    cache,
		Echo:     e,
		Users:    users,
		Sessions: sessions,
		Gateway:  gateway,
	}

	// Register global middleware in order of execution.
	app.setupMiddleware()

	// Register the custom error handler that maps AppErrors to envelopes.
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other
	// middleware.
	a.Echo.Use(middleware.Recovery())

	// Request logging -- log every request with method, path, status, latency.
	a.Echo.Use(middleware.RequestLogger())

	// Credentials never transit plaintext in real deployments. Development
	// has no TLS-terminating proxy, so the check is skipped there.
	if !a.Config.IsDevelopment() {
		a.Echo.Use(middleware.RequireTLS())
	}
}

// RegisterRoutes sets up all route groups under the /api/v1 root.
func (a *App) RegisterRoutes() {
	root := a.Echo.Group("/api/v1")

	account.RegisterRoutes(root.Group("/users"),
		account.NewHandler(a.Users, a.Sessions), a.Gateway)

	deriver := game.NewTokenDeriver(a.Config.Auth.SharedSecret)
	game.RegisterRoutes(root.Group("/game"),
		game.NewHandler(a.Users, deriver, a.Config.Game.ServerAddr), a.Gateway)
}

// Start runs the HTTP server on the configured port, blocking until it
// stops.
func (a *App) Start() error {
	return a.Echo.Start(fmt.Sprintf(":%d", a.Config.Port))
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) to the failure envelope the clients parse, logging internal
// causes without ever exposing them.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
		middleware.Fail(c, appErr.Code, appErr.Reason())
		return
	}

	// Echo's built-in HTTP errors (e.g., 404 from the router).
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		reason := http.StatusText(echoErr.Code)
		if msg, ok := echoErr.Message.(string); ok {
			reason = msg
		}
		middleware.Fail(c, echoErr.Code, reason)
		return
	}

	// Truly unexpected error -- log it, reply generically.
	slog.Error("unhandled error",
		slog.Any("error", err),
		slog.String("path", c.Request().URL.Path),
	)
	middleware.Fail(c, http.StatusInternalServerError, apperror.SafeMessage(err))
}
