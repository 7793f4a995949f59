package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/pawbyte/accounts/internal/config"
	"github.com/pawbyte/accounts/internal/store"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{32}$`)

// --- Mock Primary Store ---

// memPrimary implements store.Primary in memory, keyed by generated ids.
type memPrimary struct {
	seq  atomic.Int64
	docs map[string]store.Document
}

func newMemPrimary() *memPrimary {
	return &memPrimary{docs: map[string]store.Document{}}
}

func (m *memPrimary) Insert(ctx context.Context, collection string, doc store.Document) (string, error) {
	id := fmt.Sprintf("%024x", m.seq.Add(1))
	stored := store.Document{"_id": id}
	for k, v := range doc {
		stored[k] = v
	}
	m.docs[id] = stored
	return id, nil
}

func (m *memPrimary) Find(ctx context.Context, collection string, filter store.Document, projection []string) ([]store.Document, error) {
	var out []store.Document
	for _, doc := range m.docs {
		match := true
		for k, v := range filter {
			if doc[k] != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *memPrimary) Update(ctx context.Context, collection string, filter, set store.Document) (int64, error) {
	docs, _ := m.Find(ctx, collection, filter, nil)
	if len(docs) == 0 {
		return 0, nil
	}
	for k, v := range set {
		docs[0][k] = v
	}
	return 1, nil
}

func (m *memPrimary) Delete(ctx context.Context, collection string, filter store.Document) (int64, error) {
	docs, _ := m.Find(ctx, collection, filter, nil)
	if len(docs) == 0 {
		return 0, nil
	}
	id, _ := docs[0]["_id"].(string)
	delete(m.docs, id)
	return 1, nil
}

// --- Test Helpers ---

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Reason json.RawMessage `json:"reason"`
}

func newTestApp(t *testing.T) (*App, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		Env:  "development",
		Port: 0,
		Auth: config.AuthConfig{
			HashSecret:   "test-hash-secret",
			SharedSecret: "test-shared-secret",
			SessionTTL:   600 * time.Second,
		},
		Game: config.GameConfig{ServerAddr: "game.example.com:8008"},
	}

	a := New(cfg, newMemPrimary(), store.NewRedisFromClient(rdb))
	a.RegisterRoutes()
	return a, mr
}

// do sends a JSON request through the whole Echo stack and decodes the
// response envelope.
func do(t *testing.T, a *App, method, target string, body map[string]string) (int, envelope) {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope from %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func dataMap(t *testing.T, env envelope) map[string]string {
	t.Helper()
	out := map[string]string{}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decoding data %q: %v", string(env.Data), err)
	}
	return out
}

func reasonMap(t *testing.T, env envelope) map[string]string {
	t.Helper()
	out := map[string]string{}
	if err := json.Unmarshal(env.Reason, &out); err != nil {
		t.Fatalf("decoding reason %q: %v", string(env.Reason), err)
	}
	return out
}

func reasonString(t *testing.T, env envelope) string {
	t.Helper()
	var out string
	if err := json.Unmarshal(env.Reason, &out); err != nil {
		t.Fatalf("decoding reason %q: %v", string(env.Reason), err)
	}
	return out
}

// createAndLogin registers a user and logs in, returning id, session id,
// and token.
func createAndLogin(t *testing.T, a *App, username, password string) (id, sessionID, token string) {
	t.Helper()

	_, env := do(t, a, http.MethodPost, "/api/v1/users/create",
		map[string]string{"username": username, "password": password})
	if env.Status != "success" {
		t.Fatalf("create failed: %s", string(env.Reason))
	}

	_, env = do(t, a, http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": username, "password": password})
	if env.Status != "success" {
		t.Fatalf("login failed: %s", string(env.Reason))
	}

	data := dataMap(t, env)
	return data["id"], data["session"], data["token"]
}

// --- Create / Login ---

func TestCreate_Success(t *testing.T) {
	a, _ := newTestApp(t)

	code, env := do(t, a, http.MethodPost, "/api/v1/users/create",
		map[string]string{"username": "Alice", "password": "pw123"})
	if code != http.StatusOK || env.Status != "success" {
		t.Fatalf("expected success, got %d %s", code, string(env.Reason))
	}

	data := dataMap(t, env)
	if data["username"] != "Alice" {
		t.Errorf("expected username Alice, got %q", data["username"])
	}
	if data["id"] == "" {
		t.Error("expected an assigned id")
	}

	// The account is now known under its case-folded name.
	ok, err := a.Users.HasUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected hasUser(alice) true after create")
	}
}

func TestCreate_MissingArguments(t *testing.T) {
	a, _ := newTestApp(t)

	code, env := do(t, a, http.MethodPost, "/api/v1/users/create",
		map[string]string{"username": "Alice"})
	if code != http.StatusBadRequest || env.Status != "fail" {
		t.Fatalf("expected 400 fail, got %d %s", code, env.Status)
	}
	if reason := reasonMap(t, env); reason["password"] != "Required" {
		t.Errorf("expected password Required, got %v", reason)
	}
}

func TestCreate_DuplicateUsername(t *testing.T) {
	a, _ := newTestApp(t)

	if _, env := do(t, a, http.MethodPost, "/api/v1/users/create",
		map[string]string{"username": "Bob", "password": "pw"}); env.Status != "success" {
		t.Fatalf("first create failed: %s", string(env.Reason))
	}

	code, env := do(t, a, http.MethodPost, "/api/v1/users/create",
		map[string]string{"username": "bob", "password": "pw"})
	if code != http.StatusConflict || env.Status != "fail" {
		t.Fatalf("expected 409 fail, got %d %s", code, env.Status)
	}
	if reason := reasonMap(t, env); reason["username"] != "Already taken" {
		t.Errorf("expected username Already taken, got %v", reason)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	a, _ := newTestApp(t)
	createAndLogin(t, a, "Alice", "pw123")

	code, env := do(t, a, http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "alice", "password": "wrong"})
	if code != http.StatusUnauthorized || env.Status != "fail" {
		t.Fatalf("expected 401 fail, got %d %s", code, env.Status)
	}
	if got := reasonString(t, env); got != "Username/password mismatch" {
		t.Errorf("expected uniform mismatch reason, got %q", got)
	}
}

func TestLogin_UnknownUserSameReason(t *testing.T) {
	a, _ := newTestApp(t)

	// No such account: the reason must be indistinguishable from a wrong
	// password so responses never confirm account existence.
	_, env := do(t, a, http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "ghost", "password": "pw"})
	if got := reasonString(t, env); got != "Username/password mismatch" {
		t.Errorf("expected uniform mismatch reason, got %q", got)
	}
}

func TestLogin_IssuesSession(t *testing.T) {
	a, _ := newTestApp(t)

	_, sessionID, token := createAndLogin(t, a, "Alice", "pw123")

	if !hexToken.MatchString(sessionID) {
		t.Errorf("session id is not 32 lowercase hex chars: %s", sessionID)
	}
	if !hexToken.MatchString(token) {
		t.Errorf("token is not 32 lowercase hex chars: %s", token)
	}
	if sessionID == token {
		t.Error("session id and token must be distinct")
	}
}

// --- Authenticated lookups ---

func TestFind_Authenticated(t *testing.T) {
	a, _ := newTestApp(t)
	id, sessionID, token := createAndLogin(t, a, "Alice", "pw123")

	code, env := do(t, a, http.MethodPost,
		"/api/v1/users/find/Alice?_session="+sessionID+"&_token="+token, nil)
	if code != http.StatusOK || env.Status != "success" {
		t.Fatalf("expected success, got %d %s", code, string(env.Reason))
	}
	if data := dataMap(t, env); data["id"] != id || data["username"] != "Alice" {
		t.Errorf("unexpected find payload: %v", data)
	}
}

func TestFind_BogusToken(t *testing.T) {
	a, _ := newTestApp(t)
	_, sessionID, _ := createAndLogin(t, a, "Alice", "pw123")

	code, env := do(t, a, http.MethodPost,
		"/api/v1/users/find/Alice?_session="+sessionID+"&_token=bogus-token", nil)
	if code != http.StatusUnauthorized || env.Status != "fail" {
		t.Fatalf("expected 401 fail, got %d %s", code, env.Status)
	}
	if reason := reasonMap(t, env); reason["_token"] != "Invalid" {
		t.Errorf("expected _token Invalid, got %v", reason)
	}
}

func TestFind_MissingSessionArguments(t *testing.T) {
	a, _ := newTestApp(t)
	createAndLogin(t, a, "Alice", "pw123")

	// Absent credentials are a per-field validation error, not an auth
	// failure.
	code, env := do(t, a, http.MethodPost, "/api/v1/users/find/Alice", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	reason := reasonMap(t, env)
	if reason["_session"] != "Required" || reason["_token"] != "Required" {
		t.Errorf("expected _session/_token Required, got %v", reason)
	}
}

func TestGet_UnknownUser(t *testing.T) {
	a, _ := newTestApp(t)
	_, sessionID, token := createAndLogin(t, a, "Alice", "pw123")

	code, env := do(t, a, http.MethodPost,
		"/api/v1/users/ffffffffffffffffffffffff/get?_session="+sessionID+"&_token="+token, nil)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if reason := reasonMap(t, env); reason["id"] != "Not found" {
		t.Errorf("expected id Not found, got %v", reason)
	}
}

// --- Update ---

func TestUpdate_WrongOldPassword(t *testing.T) {
	a, _ := newTestApp(t)
	id, sessionID, token := createAndLogin(t, a, "Alice", "pw123")

	code, env := do(t, a, http.MethodPost, "/api/v1/users/"+id+"/update",
		map[string]string{
			"_session":    sessionID,
			"_token":      token,
			"oldPassword": "wrong-old",
			"newPassword": "new",
		})
	if code != http.StatusForbidden || env.Status != "fail" {
		t.Fatalf("expected 403 fail, got %d %s", code, env.Status)
	}
	if reason := reasonMap(t, env); reason["oldPassword"] != "Forbidden" {
		t.Errorf("expected oldPassword Forbidden, got %v", reason)
	}

	// The stored hash is untouched: the original password still logs in.
	_, env = do(t, a, http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "Alice", "password": "pw123"})
	if env.Status != "success" {
		t.Errorf("expected original password to still verify: %s", string(env.Reason))
	}
}

func TestUpdate_PasswordAndAvatar(t *testing.T) {
	a, _ := newTestApp(t)
	id, sessionID, token := createAndLogin(t, a, "Alice", "pw123")

	code, env := do(t, a, http.MethodPost, "/api/v1/users/"+id+"/update",
		map[string]string{
			"_session":    sessionID,
			"_token":      token,
			"oldPassword": "pw123",
			"newPassword": "pw456",
			"avatar":      "https://cdn.example.com/a.png",
		})
	if code != http.StatusOK || env.Status != "success" {
		t.Fatalf("expected success, got %d %s", code, string(env.Reason))
	}

	var result struct {
		PasswordChanged bool   `json:"passwordChanged"`
		Avatar          string `json:"avatar"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if !result.PasswordChanged {
		t.Error("expected passwordChanged true")
	}
	if result.Avatar != "https://cdn.example.com/a.png" {
		t.Errorf("unexpected avatar: %q", result.Avatar)
	}

	// New password works, old one does not.
	_, env = do(t, a, http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "Alice", "password": "pw456"})
	if env.Status != "success" {
		t.Errorf("expected new password to log in: %s", string(env.Reason))
	}
	_, env = do(t, a, http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "Alice", "password": "pw123"})
	if env.Status != "fail" {
		t.Error("expected old password to stop working")
	}
}

func TestUpdate_OtherUserForbidden(t *testing.T) {
	a, _ := newTestApp(t)
	createAndLogin(t, a, "Alice", "pw123")
	victimID, _, _ := createAndLogin(t, a, "Mallory", "pw")

	// Log back in as Alice and try to update Mallory.
	_, env := do(t, a, http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "Alice", "password": "pw123"})
	data := dataMap(t, env)

	code, env := do(t, a, http.MethodPost, "/api/v1/users/"+victimID+"/update",
		map[string]string{
			"_session": data["session"],
			"_token":   data["token"],
			"avatar":   "https://evil.example.com/x.png",
		})
	if code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if reason := reasonMap(t, env); reason["id"] != "Forbidden" {
		t.Errorf("expected id Forbidden, got %v", reason)
	}
}

// --- Session expiry through the HTTP surface ---

func TestSession_ExpiresAbsolutely(t *testing.T) {
	a, mr := newTestApp(t)
	_, sessionID, token := createAndLogin(t, a, "Alice", "pw123")

	// Activity does not slide the window.
	mr.FastForward(300 * time.Second)
	code, _ := do(t, a, http.MethodPost,
		"/api/v1/users/find/Alice?_session="+sessionID+"&_token="+token, nil)
	if code != http.StatusOK {
		t.Fatalf("expected session alive at half TTL, got %d", code)
	}

	mr.FastForward(301 * time.Second)
	code, env := do(t, a, http.MethodPost,
		"/api/v1/users/find/Alice?_session="+sessionID+"&_token="+token, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after TTL elapsed, got %d", code)
	}
	if reason := reasonMap(t, env); reason["_token"] != "Invalid" {
		t.Errorf("expected _token Invalid, got %v", reason)
	}
}

// --- Game connect ---

func TestGameConnect(t *testing.T) {
	a, _ := newTestApp(t)
	id, sessionID, token := createAndLogin(t, a, "Alice", "pw123")

	code, env := do(t, a, http.MethodPost,
		"/api/v1/game/connect?_session="+sessionID+"&_token="+token, nil)
	if code != http.StatusOK || env.Status != "success" {
		t.Fatalf("expected success, got %d %s", code, string(env.Reason))
	}

	data := dataMap(t, env)
	if data["id"] != id || data["username"] != "Alice" {
		t.Errorf("unexpected identity in connect payload: %v", data)
	}
	if data["server"] != "game.example.com:8008" {
		t.Errorf("expected configured game server address, got %q", data["server"])
	}
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(data["token"]) {
		t.Errorf("game token is not 64 lowercase hex chars: %q", data["token"])
	}
	if data["token"] == token {
		t.Error("game token must not be the session token")
	}
}
