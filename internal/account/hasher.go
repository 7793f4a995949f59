package account

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces deterministic keyed digests of plaintext passwords using
// HMAC-SHA256 with a process-wide secret. The same plaintext and secret
// always yield the same digest, so stored hashes can be compared directly
// without per-user salts. That determinism is an explicit, reproducible
// property of this design, not a recommendation.
type Hasher struct {
	secret []byte
}

// NewHasher creates a hasher keyed with the given secret.
func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// Hash returns the lowercase hex HMAC-SHA256 digest of the plaintext.
func (h *Hasher) Hash(plaintext string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}
