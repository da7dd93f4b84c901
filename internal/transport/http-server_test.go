package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/config"
	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/db"
	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/models"
	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/service"
)

func TestCensorBody(t *testing.T) {
	b := `{
		"email": "email@email.com",
		"password": "123456789123"
	}`

	got := censorBody([]byte(b))
	assert.JSONEq(t, `{
		"email": "email@email.com",
		"password": "$censored"
	}`, string(got))

	assert.Equal(t, `{"username":"alice"}`, string(censorBody([]byte(`{"username":"alice"}`))))
	assert.Equal(t, "not json", string(censorBody([]byte("not json"))))
}

func newTestServer(t *testing.T, requireToken bool) http.Handler {
	t.Helper()

	cfg := &config.Config{
		DBDriver:      config.DriverSQLite,
		DBPath:        filepath.Join(t.TempDir(), "test.db"),
		BcryptCost:    bcrypt.MinCost,
		SessionTTL:    time.Hour,
		BookmarkCodec: config.CodecJSON,
		RequireToken:  requireToken,
	}
	gdb, err := db.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	l := zap.NewNop().Sugar()
	general := service.NewGeneral(cfg, gdb, service.NewDBSessionStore(gdb, cfg.SessionTTL), db.NewBookmarkCodec(cfg), l)
	return New(cfg, general, l).Handler()
}

func do(t *testing.T, h http.Handler, path, body, token string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func TestSignupHandler(t *testing.T) {
	h := newTestServer(t, true)

	code, resp := do(t, h, "/signup", `{"username":"alice","password":"secret"}`, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.MsgUserCreated, resp["message"])

	code, resp = do(t, h, "/signup", `{"username":"alice","password":"other"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, models.MsgUserExists, resp["message"])

	code, resp = do(t, h, "/signup", `{"username":"bob"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, models.MsgInvalidRequest, resp["message"])

	code, resp = do(t, h, "/signup", `{"username":`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, models.MsgInvalidRequest, resp["message"])
}

func TestSignupHandlerAcceptsAnyCredentials(t *testing.T) {
	h := newTestServer(t, true)
	long := strings.Repeat("p", 100)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{name: "password longer than 72 bytes", username: "alice", password: long},
		{name: "empty password", username: "bob", password: ""},
		{name: "empty username", username: "", password: "x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, err := json.Marshal(map[string]string{"username": tc.username, "password": tc.password})
			require.NoError(t, err)

			code, resp := do(t, h, "/signup", string(body), "")
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, models.MsgUserCreated, resp["message"])

			code, resp = do(t, h, "/login", string(body), "")
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, models.MsgLoginSuccess, resp["message"])
			assert.Equal(t, tc.username, resp["username"])
		})
	}

	code, resp := do(t, h, "/login", `{"username":"alice","password":"`+long[:99]+`q"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, models.MsgInvalidCredentials, resp["message"])
}

func TestLoginHandler(t *testing.T) {
	h := newTestServer(t, true)
	code, _ := do(t, h, "/signup", `{"username":"alice","password":"secret"}`, "")
	require.Equal(t, http.StatusOK, code)

	code, resp := do(t, h, "/login", `{"username":"alice","password":"secret"}`, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.MsgLoginSuccess, resp["message"])
	assert.Equal(t, "alice", resp["username"])
	assert.Equal(t, []interface{}{}, resp["bookmarks"])
	assert.NotEmpty(t, resp["token"])

	_, wrongPass := do(t, h, "/login", `{"username":"alice","password":"nope"}`, "")
	code, unknown := do(t, h, "/login", `{"username":"bob","password":"secret"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, models.MsgInvalidCredentials, unknown["message"])
	assert.Equal(t, unknown, wrongPass)
}

func TestSaveBookmarksHandler(t *testing.T) {
	h := newTestServer(t, true)
	do(t, h, "/signup", `{"username":"alice","password":"secret"}`, "")
	_, login := do(t, h, "/login", `{"username":"alice","password":"secret"}`, "")
	token := login["token"].(string)

	code, resp := do(t, h, "/bookmarks", `{"username":"alice","bookmarks":["a","b"]}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, models.MsgUnauthorized, resp["message"])

	code, resp = do(t, h, "/bookmarks", `{"username":"alice","bookmarks":["a","b"]}`, "bogus")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, models.MsgUnauthorized, resp["message"])

	code, resp = do(t, h, "/bookmarks", `{"username":"alice","bookmarks":["a","b"]}`, token)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.MsgBookmarksSaved, resp["message"])

	code, resp = do(t, h, "/bookmarks", `{"username":"ghost","bookmarks":["a"]}`, token)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, models.MsgUserNotFound, resp["message"])

	_, login = do(t, h, "/login", `{"username":"alice","password":"secret"}`, "")
	assert.Equal(t, []interface{}{"a", "b"}, login["bookmarks"])

	code, resp = do(t, h, "/logout", ``, token)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.MsgLoggedOut, resp["message"])

	code, _ = do(t, h, "/bookmarks", `{"username":"alice","bookmarks":["c"]}`, token)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSaveBookmarksHandlerWithoutTokens(t *testing.T) {
	h := newTestServer(t, false)
	do(t, h, "/signup", `{"username":"alice","password":"secret"}`, "")

	code, resp := do(t, h, "/bookmarks", `{"username":"alice","bookmarks":["a"]}`, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.MsgBookmarksSaved, resp["message"])

	code, resp = do(t, h, "/bookmarks", `{"username":"ghost","bookmarks":["a"]}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, models.MsgUserNotFound, resp["message"])

	code, resp = do(t, h, "/bookmarks", `{"username":"alice"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, models.MsgInvalidRequest, resp["message"])
}

func TestCORSAndNotFound(t *testing.T) {
	h := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/nothing-here", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len())
}
