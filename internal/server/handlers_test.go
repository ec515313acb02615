package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTP(t *testing.T) (*fixture, *Server, *httptest.Server) {
	t.Helper()
	f := newFixture(t)
	srv := &Server{cfg: f.cfg, state: f.manager, hub: f.hub, router: f.router}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return f, srv, ts
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHealthHandler(t *testing.T) {
	_, _, ts := newTestHTTP(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "collabchat server is running!", readBody(t, resp))
}

func TestChatHandlerFormatsTimestamps(t *testing.T) {
	f, _, ts := newTestHTTP(t)
	_, err := f.manager.AppendMessage("alice", "hi", "2024-01-02T03:04:05.000Z")
	require.NoError(t, err)
	_, err = f.manager.AppendMessage("bob", "yo", "yesterday")
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/chat")
	require.NoError(t, err)

	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "[02/01/2024, 03:04:05] alice: hi\n[yesterday] bob: yo", readBody(t, resp))
}

func TestDocumentHandler(t *testing.T) {
	f, _, ts := newTestHTTP(t)
	require.NoError(t, f.manager.SetDocument("draft v2\nsecond line"))

	resp, err := http.Get(ts.URL + "/api/document")
	require.NoError(t, err)

	assert.Equal(t, "draft v2\nsecond line", readBody(t, resp))
}

func TestPostMessageHandler(t *testing.T) {
	f, _, ts := newTestHTTP(t)
	listener := f.admit(t, "listener")

	resp, err := http.Post(ts.URL+"/api/message", "application/json", strings.NewReader(`{"message":"hello","author":"carol"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"sent":true}`, readBody(t, resp))

	event := nextEvent(t, listener)
	assert.Equal(t, "broadcast", event["type"])
	assert.Equal(t, "carol", event["author"])
	assert.Equal(t, "hello", event["text"])
	assert.Equal(t, "2024-03-04T05:06:07.008Z", event["timestamp"])
}

func TestPostMessageHandlerErrors(t *testing.T) {
	f, _, ts := newTestHTTP(t)

	resp, err := http.Post(ts.URL+"/api/message", "application/json", strings.NewReader(`{"author":"carol"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	readBody(t, resp)

	resp, err = http.Post(ts.URL+"/api/message", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	readBody(t, resp)

	f.store.failChat = true
	resp, err = http.Post(ts.URL+"/api/message", "application/json", strings.NewReader(`{"message":"hi","author":"carol"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Failed to save chat history"}`, readBody(t, resp))
	assert.Empty(t, f.manager.Snapshot().History)
}

func TestWebSocketEndpointRejectsPost(t *testing.T) {
	_, _, ts := newTestHTTP(t)

	resp, err := http.Post(ts.URL+"/ws", "text/plain", nil)
	require.NoError(t, err)
	readBody(t, resp)

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestLoginHandler(t *testing.T) {
	f, _, ts := newTestHTTP(t)
	users := `[{"name":"alice","email":"alice@example.com","role":"editor"}]`
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.DataDir, "users.json"), []byte(users), 0o644))

	resp, err := http.Post(ts.URL+"/login", "application/json", strings.NewReader(`{"username":"alice","email":"alice@example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Message string                 `json:"message"`
		User    map[string]interface{} `json:"user"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &body))
	assert.Equal(t, "User found", body.Message)
	assert.Equal(t, "editor", body.User["role"])

	resp, err = http.Post(ts.URL+"/login", "application/json", strings.NewReader(`{"username":"alice","email":"other@example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	readBody(t, resp)
}

func TestLoginHandlerMissingUsersFile(t *testing.T) {
	_, _, ts := newTestHTTP(t)

	resp, err := http.Post(ts.URL+"/login", "application/json", strings.NewReader(`{"username":"a","email":"b"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Server error"}`, readBody(t, resp))
}

func TestTestPageHandler(t *testing.T) {
	_, _, ts := newTestHTTP(t)

	resp, err := http.Get(ts.URL + "/test")
	require.NoError(t, err)

	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	assert.Contains(t, readBody(t, resp), "new WebSocket(")
}
