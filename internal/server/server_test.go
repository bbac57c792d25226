package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/gatekeeper"
	"github.com/MrEthical07/gatekeeper/credentials"
	"github.com/MrEthical07/gatekeeper/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	server *Server
	engine *gatekeeper.Engine
	store  *credentials.SQLStore
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	return logger
}

func newSQLiteStore(t *testing.T) *credentials.SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := credentials.NewSQLStore(db, credentials.DialectSQLite, nil)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store := newSQLiteStore(t)

	cfg := gatekeeper.DefaultConfig()
	cfg.JWT.Secret = append([]byte(nil), testSecret...)

	engine, err := gatekeeper.New().
		WithConfig(cfg).
		WithUserProvider(store).
		WithLogger(quietLogger()).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	srvCfg := config.Default().Server
	return &testEnv{
		server: New(srvCfg, engine, store, quietLogger(), opts...),
		engine: engine,
		store:  store,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func creds(username, password string) map[string]string {
	return map[string]string{"username": username, "password": password}
}

func (e *testEnv) login(t *testing.T, path, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, path, creds(username, password), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decodeBody(t, rec)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/register", creds("alice", "secret"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Registration successful", decodeBody(t, rec)["message"])

	rec = env.do(t, http.MethodPost, "/login", creds("alice", "secret"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Login successful", body["message"])
	assert.Equal(t, "alice", body["username"])
	assert.NotEmpty(t, body["token"])
}

func TestRegisterDuplicateFails(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Register(context.Background(), "alice", "secret"))

	rec := env.do(t, http.MethodPost, "/register", creds("alice", "other"), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Registration failed", decodeBody(t, rec)["message"])
}

func TestMalformedBodies(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/register", "/login"} {
		rec := env.do(t, http.MethodPost, path, "{not json", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)

		rec = env.do(t, http.MethodPost, path, map[string]string{"username": "alice"}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	rec := env.do(t, http.MethodPost, "/admin-login", "{not json", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Register(context.Background(), "alice", "secret"))

	for _, pair := range [][2]string{{"alice", "wrong"}, {"nobody", "secret"}} {
		rec := env.do(t, http.MethodPost, "/login", creds(pair[0], pair[1]), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid credentials", decodeBody(t, rec)["message"])
	}
}

func TestUserDashboardFlow(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Register(context.Background(), "alice", "secret"))
	token := env.login(t, "/login", "alice", "secret")

	rec := env.do(t, http.MethodGet, "/user-dashboard", nil, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Welcome to user dashboard", body["message"])
	assert.Equal(t, "alice", body["username"])

	// The raw token without a Bearer prefix is accepted too.
	rec = env.do(t, http.MethodGet, "/user-dashboard", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/admin-dashboard", nil, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token type!", decodeBody(t, rec)["message"])

	rec = env.do(t, http.MethodPost, "/logout", nil, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logout successful", decodeBody(t, rec)["message"])

	rec = env.do(t, http.MethodGet, "/user-dashboard", nil, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Session expired!", decodeBody(t, rec)["message"])

	// Logout stays idempotent for a well-formed token.
	rec = env.do(t, http.MethodPost, "/logout", nil, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.Register(ctx, "alice", "secret"))
	require.NoError(t, env.store.Register(ctx, "bob", "hunter2"))

	rec := env.do(t, http.MethodPost, "/admin-login", creds("admin", "wrong"), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decodeBody(t, rec)["message"])

	rec = env.do(t, http.MethodPost, "/admin-login", creds("admin", "admin123"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Admin Login successful", body["message"])
	token := body["token"].(string)

	rec = env.do(t, http.MethodGet, "/admin-dashboard", nil, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "Welcome to admin dashboard", body["message"])
	assert.Equal(t, float64(2), body["user_count"])
	assert.Equal(t, "admin", body["admin"])

	rec = env.do(t, http.MethodGet, "/users", nil, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)

	rec = env.do(t, http.MethodGet, "/user-dashboard", nil, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuardedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/users", "/user-dashboard", "/admin-dashboard"} {
		rec := env.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "Token is missing!", decodeBody(t, rec)["message"], path)

		rec = env.do(t, http.MethodGet, path, nil, "Bearer garbage")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestLogoutRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/logout", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/logout", nil, "Bearer not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token is invalid!", decodeBody(t, rec)["message"])
}

func TestVerifySession(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Register(context.Background(), "alice", "secret"))
	token := env.login(t, "/login", "alice", "secret")

	rec := env.do(t, http.MethodGet, "/verify-session", nil, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "user", body["user_type"])

	// Verification is read-only: the session is still live afterwards.
	rec = env.do(t, http.MethodGet, "/user-dashboard", nil, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A second login supersedes the first token.
	env.login(t, "/login", "alice", "secret")
	rec = env.do(t, http.MethodGet, "/verify-session", nil, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "Session expired!", body["message"])

	rec = env.do(t, http.MethodGet, "/verify-session", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["valid"])
}

func TestHealthAndDBInfo(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Register(context.Background(), "alice", "secret"))

	rec := env.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Equal(t, StatusHealthy, health.Dependencies["database"].Status)

	rec = env.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/db-info", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["connection_status"])
	assert.Equal(t, float64(1), body["total_users"])
	assert.Contains(t, body["tables"], "users")
}

func TestMetricsRouteOptional(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	called := false
	env = newTestEnv(t, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})))
	rec = env.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestCORSAllowList(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t)
	env.server.config.Addr = "127.0.0.1:0"
	env.server.config.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
