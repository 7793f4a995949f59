// Package store defines the two storage collaborators the service is built
// on and provides their concrete adapters: a durable document store
// (MongoDB) holding the authoritative user records, and a key/value store
// with per-key expiry (Redis) holding session state and a write-through
// cache of user state.
//
// Both connections are created once at startup and shared across the
// application via dependency injection. This package owns the connection
// lifecycle (open, ping, close).
package store

import (
	"context"
	"time"
)

// Document is a flat field map used for inserts, field-equality filters,
// and partial-field-set updates.
type Document map[string]any

// Primary is the durable document store. Filters are field-equality
// documents; updates set the given fields and leave others untouched.
// Generated record ids are returned and accepted as opaque strings.
type Primary interface {
	// Insert adds a document to the collection and returns the generated id.
	Insert(ctx context.Context, collection string, doc Document) (string, error)

	// Find returns all documents matching the filter. A non-nil projection
	// restricts the returned fields. The id field appears as "_id".
	Find(ctx context.Context, collection string, filter Document, projection []string) ([]Document, error)

	// Update sets the given fields on the first document matching the
	// filter and returns the number of documents modified.
	Update(ctx context.Context, collection string, filter, set Document) (int64, error)

	// Delete removes the first document matching the filter and returns
	// the number of documents removed.
	Delete(ctx context.Context, collection string, filter Document) (int64, error)
}

// Cache is the fast key/value and hash-map store with per-key expiry.
// Absent keys read as zero values rather than errors: Get returns "" and
// HGetAll returns an empty map. Expiry is enforced entirely by the store's
// own timer; callers observe it only as an absent key.
type Cache interface {
	// Get returns the string value at key, or "" if the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a string value at key with no expiry.
	Set(ctx context.Context, key, value string) error

	// Exists reports whether the key is present (and unexpired).
	Exists(ctx context.Context, key string) (bool, error)

	// Expire sets the key's time-to-live, replacing any previous TTL.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// HGetAll returns all fields of the hash at key, or an empty map if
	// the key is absent.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HSet stores the given fields in the hash at key, leaving other
	// fields untouched.
	HSet(ctx context.Context, key string, fields map[string]string) error
}
