package game

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"testing"

	"github.com/pawbyte/accounts/internal/account"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestDerive_Format(t *testing.T) {
	d := NewTokenDeriver("shared")
	token := d.Derive(&account.User{ID: "abc123", Username: "Alice"})

	if !hexDigest.MatchString(token) {
		t.Errorf("game token is not 64 lowercase hex chars: %s", token)
	}
}

// The game server recomputes sha256(username ++ avatar ++ id ++ secret)
// from the identity fields the client presents; the digests must agree.
func TestDerive_MatchesIndependentComputation(t *testing.T) {
	d := NewTokenDeriver("out-of-band-secret")
	u := &account.User{
		ID:       "64f1a2b3c4d5e6f708192a3b",
		Username: "Alice",
		Avatar:   "https://cdn.example.com/a.png",
	}

	sum := sha256.Sum256([]byte(u.Username + u.Avatar + u.ID + "out-of-band-secret"))
	if got, want := d.Derive(u), hex.EncodeToString(sum[:]); got != want {
		t.Errorf("derived token %s, want %s", got, want)
	}
}

func TestDerive_UnsetAvatarContributesNothing(t *testing.T) {
	d := NewTokenDeriver("s")
	u := &account.User{ID: "id1", Username: "Bob"}

	sum := sha256.Sum256([]byte("Bob" + "id1" + "s"))
	if got, want := d.Derive(u), hex.EncodeToString(sum[:]); got != want {
		t.Errorf("derived token %s, want %s", got, want)
	}
}

func TestDerive_SensitiveToEveryInput(t *testing.T) {
	base := &account.User{ID: "id1", Username: "Bob", Avatar: "a"}
	baseToken := NewTokenDeriver("s").Derive(base)

	variants := []struct {
		name    string
		deriver *TokenDeriver
		user    *account.User
	}{
		{"username", NewTokenDeriver("s"), &account.User{ID: "id1", Username: "Bab", Avatar: "a"}},
		{"avatar", NewTokenDeriver("s"), &account.User{ID: "id1", Username: "Bob", Avatar: "b"}},
		{"id", NewTokenDeriver("s"), &account.User{ID: "id2", Username: "Bob", Avatar: "a"}},
		{"secret", NewTokenDeriver("t"), base},
	}
	for _, v := range variants {
		if v.deriver.Derive(v.user) == baseToken {
			t.Errorf("changing %s did not change the token", v.name)
		}
	}
}
