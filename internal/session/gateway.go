package session

import (
	"context"

	"github.com/pawbyte/accounts/internal/apperror"
)

// Gateway answers "is this request authenticated, and as whom" by pairing
// a session id with its token.
type Gateway struct {
	sessions *Manager
}

// NewGateway creates an authentication gateway over the session manager.
func NewGateway(sessions *Manager) *Gateway {
	return &Gateway{sessions: sessions}
}

// Authenticate validates the presented session id and token pair. Both
// must be present — a missing argument is a per-field Required validation
// error, not an auth failure. A session that does not resolve, or whose
// stored token is not exactly the supplied token, fails with the
// {"_token": "Invalid"} auth error. On success the live session is
// returned for the caller to authorize actions against its user.
func (g *Gateway) Authenticate(ctx context.Context, sessionID, token string) (*Session, error) {
	missing := map[string]string{}
	if sessionID == "" {
		missing["_session"] = "Required"
	}
	if token == "" {
		missing["_token"] = "Required"
	}
	if len(missing) > 0 {
		return nil, apperror.NewValidation(missing)
	}

	s, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil || s.Token != token {
		return nil, apperror.NewInvalidToken()
	}

	return s, nil
}
