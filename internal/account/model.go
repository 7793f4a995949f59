// Package account handles user identity for the game account service:
// account creation, credential hashing and verification, and cache-aside
// access to user records across the durable primary store and the Redis
// cache.
//
// The cache is written through on every mutation and is the only store
// consulted by the normal read path. Durable records exist so credentials
// survive a cache loss, but a user whose cached record is gone is
// unreachable through Get until it is repopulated — a deliberate latency
// trade-off inherited from the service's original design.
package account

import "github.com/pawbyte/accounts/internal/apperror"

// Collection is the primary store collection holding user documents.
const Collection = "users"

// Cache key namespaces. These are shared with any pre-existing deployment
// of the service and must not change:
//
//	name-<username lowercase> -> user id (string)
//	user-<id>                 -> hash of {id, username, password, avatar}
const (
	namePrefix = "name-"
	userPrefix = "user-"
)

// User is a registered player account. This is the domain model used
// throughout the application; it carries no behavior (stateless services
// operate on it).
type User struct {
	// ID is the opaque identifier assigned by the primary store on creation.
	ID string `json:"id"`

	// Username is unique case-insensitively but stored and returned
	// case-for-case as submitted.
	Username string `json:"username"`

	// PasswordHash is the keyed digest of the password. Never expose in
	// JSON responses.
	PasswordHash string `json:"-"`

	// Avatar is the URL of the user's avatar. Empty means unset — an
	// application-level convention, not an absent field.
	Avatar string `json:"avatar,omitempty"`
}

// Lookup identifies a user by id, by username, or by a partial record
// carrying either. When ID is empty the Username is resolved through the
// cache's name mapping.
type Lookup struct {
	ID       string
	Username string
}

// nameKey returns the cache key mapping a case-folded username to an id.
func nameKey(usernameLower string) string {
	return namePrefix + usernameLower
}

// userKey returns the cache key holding the full user record hash.
func userKey(id string) string {
	return userPrefix + id
}

// errAlreadyTaken is the conflict reported for a duplicate username.
func errAlreadyTaken() *apperror.AppError {
	return apperror.NewConflict(map[string]string{"username": "Already taken"})
}
