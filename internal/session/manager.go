// Package session issues, stores, and validates time-limited login
// sessions. The cache store holds the only copy of session state; expiry
// is enforced entirely by its per-key TTL, so the service performs no
// sweeping and a session simply stops resolving once its time elapses.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pawbyte/accounts/internal/apperror"
	"github.com/pawbyte/accounts/internal/store"
)

// sessionPrefix is the cache key namespace for session hashes:
// session-<id> -> {id, token, user}, with the configured TTL. Shared with
// any pre-existing deployment; must not change.
const sessionPrefix = "session-"

// DefaultTTL is the standard session lifetime: 10 minutes, absolute.
const DefaultTTL = 600 * time.Second

// tokenBytes is the entropy in a session id or token: 128 bits,
// hex-encoded to 32 characters.
const tokenBytes = 16

// Session is an authenticated login session. ID and Token are independent
// random values; both must be presented together to authenticate.
type Session struct {
	ID     string `json:"id"`
	Token  string `json:"token"`
	UserID string `json:"user"`
}

// Manager creates and resolves sessions in the cache store.
type Manager struct {
	cache store.Cache
	ttl   time.Duration
}

// NewManager creates a session manager with the given TTL. A zero ttl
// falls back to DefaultTTL.
func NewManager(cache store.Cache, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{cache: cache, ttl: ttl}
}

// Create issues a new session for the user: a fresh id and token, stored
// as a hash under the session key with the TTL armed. The TTL is absolute
// from this moment; nothing on the authentication path extends it.
func (m *Manager) Create(ctx context.Context, userID string) (*Session, error) {
	id, err := generateToken()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	token, err := generateToken()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	s := &Session{ID: id, Token: token, UserID: userID}

	if err := m.cache.HSet(ctx, sessionKey(id), map[string]string{
		"id":    s.ID,
		"token": s.Token,
		"user":  s.UserID,
	}); err != nil {
		return nil, apperror.NewStorage(err)
	}
	if err := m.Refresh(ctx, id); err != nil {
		return nil, err
	}

	return s, nil
}

// Refresh re-arms the session's TTL from now. The authentication path
// never calls this — sessions expire on an absolute clock — but it is
// kept available for explicit invocation.
func (m *Manager) Refresh(ctx context.Context, id string) error {
	if err := m.cache.Expire(ctx, sessionKey(id), m.ttl); err != nil {
		return apperror.NewStorage(err)
	}
	return nil
}

// Get resolves a session by id. Returns nil (not an error) when the key
// is absent or has expired; the cache's TTL mechanism is authoritative.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	rec, err := m.cache.HGetAll(ctx, sessionKey(id))
	if err != nil {
		return nil, apperror.NewStorage(err)
	}
	if len(rec) == 0 {
		return nil, nil
	}

	return &Session{
		ID:     rec["id"],
		Token:  rec["token"],
		UserID: rec["user"],
	}, nil
}

// sessionKey returns the cache key for a session id.
func sessionKey(id string) string {
	return sessionPrefix + id
}

// generateToken returns 128 bits from crypto/rand as lowercase hex.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
