package account

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pawbyte/accounts/internal/apperror"
	"github.com/pawbyte/accounts/internal/store"
)

// Repository provides cache-aside access to user records. Writes go to the
// primary store first (which assigns the id) and are then mirrored into the
// cache; reads are served from the cache. Only IsPassword falls back to the
// primary store when the cached record is gone — Get deliberately does not.
//
// No locking or transaction spans the two stores: the duplicate check and
// insert in Create, the check-then-write in UpdatePassword, and the
// primary-then-cache sequence in every mutation are each individually
// non-atomic. Callers race exactly as the deployed service always has.
type Repository struct {
	primary store.Primary
	cache   store.Cache
	hasher  *Hasher
}

// NewRepository creates a user repository over the given stores.
func NewRepository(primary store.Primary, cache store.Cache, hasher *Hasher) *Repository {
	return &Repository{primary: primary, cache: cache, hasher: hasher}
}

// Create registers a new user. The duplicate check consults the cache only;
// the primary store is never read for duplicate detection. On success the
// primary store holds the durable record and the cache holds both the
// name mapping and the full record hash (avatar stored as "" when unset).
func (r *Repository) Create(ctx context.Context, username, password, avatar string) (*User, error) {
	lower := strings.ToLower(username)

	taken, err := r.HasUser(ctx, lower)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errAlreadyTaken()
	}

	hash := r.hasher.Hash(password)

	// Primary store first: it assigns the id the cache entries are keyed by.
	id, err := r.primary.Insert(ctx, Collection, store.Document{
		"username": username,
		"password": hash,
		"avatar":   avatar,
	})
	if err != nil {
		return nil, apperror.NewStorage(err)
	}

	if err := r.cache.Set(ctx, nameKey(lower), id); err != nil {
		return nil, apperror.NewStorage(err)
	}
	if err := r.cache.HSet(ctx, userKey(id), map[string]string{
		"id":       id,
		"username": username,
		"password": hash,
		"avatar":   avatar,
	}); err != nil {
		return nil, apperror.NewStorage(err)
	}

	slog.Info("user created",
		slog.String("user_id", id),
		slog.String("username", username),
	)

	return &User{ID: id, Username: username, PasswordHash: hash, Avatar: avatar}, nil
}

// HasUser reports whether the case-folded username is known to the cache,
// either through the name mapping or an id-keyed record under the same key
// suffix.
func (r *Repository) HasUser(ctx context.Context, usernameLower string) (bool, error) {
	ok, err := r.cache.Exists(ctx, nameKey(usernameLower))
	if err != nil {
		return false, apperror.NewStorage(err)
	}
	if ok {
		return true, nil
	}

	ok, err = r.cache.Exists(ctx, userKey(usernameLower))
	if err != nil {
		return false, apperror.NewStorage(err)
	}
	return ok, nil
}

// Get retrieves a user by Lookup, reading the cache only. A username is
// resolved to an id through the name mapping; the record itself is read
// from the id-keyed hash. Returns nil (not an error) when the record is
// absent — there is no fallback to the primary store on this path, so a
// cache loss makes an existing user unreachable here even though the
// primary store still holds their data.
func (r *Repository) Get(ctx context.Context, l Lookup) (*User, error) {
	id := l.ID
	if id == "" && l.Username != "" {
		var err error
		id, err = r.cache.Get(ctx, nameKey(strings.ToLower(l.Username)))
		if err != nil {
			return nil, apperror.NewStorage(err)
		}
	}
	if id == "" {
		return nil, nil
	}

	ok, err := r.cache.Exists(ctx, userKey(id))
	if err != nil {
		return nil, apperror.NewStorage(err)
	}
	if !ok {
		return nil, nil
	}

	rec, err := r.cache.HGetAll(ctx, userKey(id))
	if err != nil {
		return nil, apperror.NewStorage(err)
	}

	return &User{
		ID:           rec["id"],
		Username:     rec["username"],
		PasswordHash: rec["password"],
		Avatar:       rec["avatar"],
	}, nil
}

// Resolve retrieves a user from a single string that may be either a
// username or an id. A string with a name mapping is treated as a
// username; anything else is tried as an id.
func (r *Repository) Resolve(ctx context.Context, ref string) (*User, error) {
	ok, err := r.cache.Exists(ctx, nameKey(strings.ToLower(ref)))
	if err != nil {
		return nil, apperror.NewStorage(err)
	}
	if ok {
		return r.Get(ctx, Lookup{Username: ref})
	}
	return r.Get(ctx, Lookup{ID: ref})
}

// IsPassword reports whether the candidate matches the user's stored
// digest. The cached record is preferred; when it is gone the primary
// store is consulted by id. This is the one read path with a primary-store
// fallback, kept asymmetric with Get on purpose: a user evicted from the
// cache can still be password-checked but not fetched.
func (r *Repository) IsPassword(ctx context.Context, u *User, candidate string) (bool, error) {
	ok, err := r.cache.Exists(ctx, userKey(u.ID))
	if err != nil {
		return false, apperror.NewStorage(err)
	}

	if ok {
		rec, err := r.cache.HGetAll(ctx, userKey(u.ID))
		if err != nil {
			return false, apperror.NewStorage(err)
		}
		return rec["password"] == r.hasher.Hash(candidate), nil
	}

	docs, err := r.primary.Find(ctx, Collection, store.Document{"_id": u.ID}, []string{"password"})
	if err != nil {
		return false, apperror.NewStorage(err)
	}
	if len(docs) == 0 {
		return false, nil
	}

	stored, _ := docs[0]["password"].(string)
	return stored == r.hasher.Hash(candidate), nil
}

// UpdatePassword changes the user's password after verifying the old one.
// Returns Forbidden (keyed to oldPassword) on mismatch. The check and the
// write are separate operations, as are the primary write and the cache
// mirror; a concurrent update can land in the window between them.
func (r *Repository) UpdatePassword(ctx context.Context, u *User, oldPassword, newPassword string) (bool, error) {
	ok, err := r.IsPassword(ctx, u, oldPassword)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, apperror.NewForbidden(map[string]string{"oldPassword": "Forbidden"})
	}

	hash := r.hasher.Hash(newPassword)

	modified, err := r.primary.Update(ctx, Collection,
		store.Document{"_id": u.ID},
		store.Document{"password": hash},
	)
	if err != nil {
		return false, apperror.NewStorage(err)
	}

	if err := r.mirrorField(ctx, u.ID, "password", hash); err != nil {
		return false, err
	}

	u.PasswordHash = hash
	return modified > 0, nil
}

// SetAvatar writes the new avatar to the primary store, then overwrites
// the cached record's avatar field. Not atomic across the two stores: a
// failure between the writes leaves them disagreeing, with the cache's
// copy winning all subsequent reads.
func (r *Repository) SetAvatar(ctx context.Context, u *User, avatar string) error {
	if _, err := r.primary.Update(ctx, Collection,
		store.Document{"_id": u.ID},
		store.Document{"avatar": avatar},
	); err != nil {
		return apperror.NewStorage(err)
	}

	if err := r.mirrorField(ctx, u.ID, "avatar", avatar); err != nil {
		return err
	}

	u.Avatar = avatar
	return nil
}

// mirrorField read-modify-writes a single field of the cached user hash.
func (r *Repository) mirrorField(ctx context.Context, id, field, value string) error {
	rec, err := r.cache.HGetAll(ctx, userKey(id))
	if err != nil {
		return apperror.NewStorage(err)
	}
	rec[field] = value
	if err := r.cache.HSet(ctx, userKey(id), rec); err != nil {
		return apperror.NewStorage(err)
	}
	return nil
}
