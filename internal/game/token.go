// Package game hands authenticated players off to the game server. The
// derived connection token lets the game server confirm on its own that a
// bearer was recently authenticated here, without reaching our stores —
// only the shared secret, distributed out-of-band, links the two services.
package game

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pawbyte/accounts/internal/account"
)

// TokenDeriver computes per-connection game tokens.
type TokenDeriver struct {
	secret string
}

// NewTokenDeriver creates a deriver keyed with the shared secret.
func NewTokenDeriver(secret string) *TokenDeriver {
	return &TokenDeriver{secret: secret}
}

// Derive returns the 64-character lowercase hex SHA-256 digest of
// username ++ avatar-or-empty ++ id ++ secret. The game server recomputes
// the same digest from the identity fields the client presents.
func (d *TokenDeriver) Derive(u *account.User) string {
	h := sha256.New()
	h.Write([]byte(u.Username))
	h.Write([]byte(u.Avatar))
	h.Write([]byte(u.ID))
	h.Write([]byte(d.secret))
	return hex.EncodeToString(h.Sum(nil))
}
