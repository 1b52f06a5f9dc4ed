package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/messagely/internal/config"
)

// newTestServer builds the full stack over an in-memory SQLite store.
func newTestServer(t *testing.T, metrics bool) http.Handler {
	t.Helper()
	cfg := config.Config{
		Port:           0,
		DBDriver:       "sqlite",
		DBDSN:          ":memory:",
		JWTSecret:      "end-to-end-secret-0123456789",
		BcryptCost:     4,
		HashWorkers:    2,
		LogLevel:       slog.LevelError,
		MetricsEnabled: metrics,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv.Handler()
}

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func (c apiClient) do(method, path, token string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)

	var out map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.NewDecoder(rr.Body).Decode(&out))
	}
	return rr.Code, out
}

func (c apiClient) register(username string) string {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/register", "", map[string]string{
		"username":   username,
		"password":   username + "-password",
		"first_name": strings.ToUpper(username[:1]) + username[1:],
		"last_name":  "Tester",
		"phone":      "+1555" + username,
	})
	require.Equal(c.t, http.StatusCreated, status, "register %s: %v", username, body)
	return body["token"].(string)
}

func (c apiClient) login(username string) string {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/login", "", map[string]string{
		"username": username,
		"password": username + "-password",
	})
	require.Equal(c.t, http.StatusOK, status, "login %s: %v", username, body)
	return body["token"].(string)
}

func TestEndToEnd_MessageFlow(t *testing.T) {
	c := apiClient{t: t, handler: newTestServer(t, false)}

	c.register("alice")
	c.register("bob")
	c.register("carol")

	alice := c.login("alice")
	bob := c.login("bob")
	carol := c.login("carol")

	// alice → bob
	status, body := c.do(http.MethodPost, "/messages", alice, map[string]string{
		"to_username": "bob",
		"body":        "hello",
	})
	require.Equal(t, http.StatusCreated, status, "%v", body)
	msg := body["message"].(map[string]any)
	assert.Equal(t, "alice", msg["from_username"])
	assert.Equal(t, "bob", msg["to_username"])
	assert.NotEmpty(t, msg["sent_at"])
	id := int(msg["id"].(float64))
	require.Positive(t, id)
	path := "/messages/" + strconv.Itoa(id)

	// bob can read it, unread so far
	status, body = c.do(http.MethodGet, path, bob, nil)
	require.Equal(t, http.StatusOK, status)
	detail := body["message"].(map[string]any)
	assert.Nil(t, detail["read_at"])
	assert.Equal(t, "alice", detail["from_user"].(map[string]any)["username"])
	assert.Equal(t, "+1555bob", detail["to_user"].(map[string]any)["phone"])

	// carol cannot
	status, _ = c.do(http.MethodGet, path, carol, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// neither alice (sender) nor carol may mark it read
	for _, token := range []string{alice, carol} {
		status, _ = c.do(http.MethodPost, path+"/read", token, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	}
	_, body = c.do(http.MethodGet, path, bob, nil)
	assert.Nil(t, body["message"].(map[string]any)["read_at"], "a denied mark-read must not set read_at")

	// bob marks it read; a second call keeps the first timestamp
	status, body = c.do(http.MethodPost, path+"/read", bob, nil)
	require.Equal(t, http.StatusOK, status)
	readAt := body["message"].(map[string]any)["read_at"].(string)

	time.Sleep(2 * time.Millisecond)
	_, body = c.do(http.MethodPost, path+"/read", bob, nil)
	assert.Equal(t, readAt, body["message"].(map[string]any)["read_at"])

	_, body = c.do(http.MethodGet, path, alice, nil)
	detail = body["message"].(map[string]any)
	sent, err := time.Parse(time.RFC3339Nano, detail["sent_at"].(string))
	require.NoError(t, err)
	read, err := time.Parse(time.RFC3339Nano, detail["read_at"].(string))
	require.NoError(t, err)
	assert.False(t, read.Before(sent), "read_at %v before sent_at %v", read, sent)

	// listings
	status, body = c.do(http.MethodGet, "/users/alice/from", alice, nil)
	require.Equal(t, http.StatusOK, status)
	sentList := body["messages"].([]any)
	require.Len(t, sentList, 1)
	assert.Equal(t, "bob", sentList[0].(map[string]any)["to_user"].(map[string]any)["username"])

	status, body = c.do(http.MethodGet, "/users/bob/to", bob, nil)
	require.Equal(t, http.StatusOK, status)
	inbox := body["messages"].([]any)
	require.Len(t, inbox, 1)
	assert.Equal(t, "alice", inbox[0].(map[string]any)["from_user"].(map[string]any)["username"])

	status, body = c.do(http.MethodGet, "/users/carol/to", carol, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["messages"])
}

func TestEndToEnd_Users(t *testing.T) {
	c := apiClient{t: t, handler: newTestServer(t, false)}
	bob := c.register("bob")
	alice := c.register("alice")

	status, body := c.do(http.MethodGet, "/users", bob, nil)
	require.Equal(t, http.StatusOK, status)
	users := body["users"].([]any)
	require.Len(t, users, 2)
	first := users[0].(map[string]any)
	assert.Equal(t, "alice", first["username"])
	assert.NotContains(t, first, "password")

	status, body = c.do(http.MethodGet, "/users/alice", alice, nil)
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	assert.Equal(t, "Alice", user["first_name"])
	assert.NotEmpty(t, user["join_at"])
	assert.NotContains(t, user, "password")

	// someone else's profile
	status, _ = c.do(http.MethodGet, "/users/alice", bob, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = c.do(http.MethodGet, "/users/alice/to", bob, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// no token at all
	status, _ = c.do(http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestEndToEnd_AuthErrors(t *testing.T) {
	c := apiClient{t: t, handler: newTestServer(t, false)}
	c.register("alice")

	// duplicate registration
	status, body := c.do(http.MethodPost, "/register", "", map[string]string{
		"username": "alice", "password": "x", "first_name": "A", "last_name": "B", "phone": "1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["error"])
	assert.Equal(t, "username", body["field"])

	// missing field
	status, body = c.do(http.MethodPost, "/register", "", map[string]string{
		"username": "dave", "password": "x", "first_name": "D", "last_name": "E",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "phone", body["field"])

	// bad password, unknown user
	for _, creds := range []map[string]string{
		{"username": "alice", "password": "wrong"},
		{"username": "nobody", "password": "alice-password"},
	} {
		status, body = c.do(http.MethodPost, "/login", "", creds)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_credentials", body["error"])
	}
}

func TestEndToEnd_TokenInQueryAndBody(t *testing.T) {
	c := apiClient{t: t, handler: newTestServer(t, false)}
	alice := c.register("alice")
	c.register("bob")

	status, _ := c.do(http.MethodGet, "/users?_token="+alice, "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := c.do(http.MethodPost, "/messages", "", map[string]string{
		"_token":      alice,
		"to_username": "bob",
		"body":        "via body token",
	})
	require.Equal(t, http.StatusCreated, status, "%v", body)
	assert.Equal(t, "alice", body["message"].(map[string]any)["from_username"])
}

func TestEndToEnd_MessageErrors(t *testing.T) {
	c := apiClient{t: t, handler: newTestServer(t, false)}
	alice := c.register("alice")

	status, _ := c.do(http.MethodGet, "/messages/999", alice, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = c.do(http.MethodGet, "/messages/abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = c.do(http.MethodPost, "/messages", alice, map[string]string{"to_username": "ghost", "body": "hi"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body := c.do(http.MethodPost, "/messages", alice, map[string]string{"to_username": "alice"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "body", body["field"])
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, true)
	c := apiClient{t: t, handler: h}

	status, body := c.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	text := rr.Body.String()
	assert.Contains(t, text, `messagely_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, text, "go_goroutines")
	assert.Contains(t, text, "go_sql_open_connections")
}

func TestMetrics_CountsRecoveredPanics(t *testing.T) {
	h := newTestServer(t, true)
	mux, ok := h.(*chi.Mux)
	require.True(t, ok, "Handler() should be the chi router")
	mux.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(),
		`messagely_http_requests_total{method="GET",route="/boom",status="500"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	h := newTestServer(t, false)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRequestIDHeader(t *testing.T) {
	h := newTestServer(t, false)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
