// Package testhelpers provides common utilities for the collabchat
// integration tests: booting a server on a temporary data directory,
// dialing websocket clients, and reading typed events.
package testhelpers

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/collabchat/internal/config"
	"github.com/Tyrowin/collabchat/internal/server"
	"github.com/Tyrowin/collabchat/internal/state"
	"github.com/Tyrowin/collabchat/internal/store"
)

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:4000"

// Env is a running server backed by a file store in a temp directory.
type Env struct {
	Config  *config.Config
	Store   *store.FileStore
	State   *state.Manager
	Server  *server.Server
	HTTP    *httptest.Server
	WSURL   string
	DataDir string
}

// StartServer boots a server. customize may adjust the config before use;
// dataDir may be empty for a fresh temp directory.
func StartServer(t *testing.T, dataDir string, customize func(cfg *config.Config)) *Env {
	t.Helper()

	cfg := config.Default()
	if dataDir == "" {
		dataDir = t.TempDir()
	}
	cfg.DataDir = dataDir
	cfg.BadgerPath = ""
	if customize != nil {
		customize(cfg)
	}
	cfg.Sanitize()

	fs, err := store.NewFileStore(cfg.DataDir)
	require.NoError(t, err)
	manager, err := state.New(fs)
	require.NoError(t, err)

	srv := server.New(cfg, manager)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Hub().Shutdown(2 * time.Second)
	})

	return &Env{
		Config:  cfg,
		Store:   fs,
		State:   manager,
		Server:  srv,
		HTTP:    ts,
		WSURL:   "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		DataDir: cfg.DataDir,
	}
}

// ConnectWebSocket dials url with the given Origin header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// Snapshot is what a client receives on admission.
type Snapshot struct {
	Welcome  map[string]interface{}
	Document map[string]interface{}
	History  map[string]interface{}
}

// Connect dials env and reads the three admission events.
func Connect(t *testing.T, env *Env) (*websocket.Conn, Snapshot) {
	t.Helper()
	conn, _, err := ConnectWebSocket(env.WSURL, TestOrigin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	snap := Snapshot{
		Welcome:  ReadEvent(t, conn),
		Document: ReadEvent(t, conn),
		History:  ReadEvent(t, conn),
	}
	require.Equal(t, "system", snap.Welcome["type"])
	require.Equal(t, "document", snap.Document["type"])
	require.Equal(t, "chatHistory", snap.History["type"])
	return conn, snap
}

// SendJSON writes v as one text frame.
func SendJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// ReadEvent reads one JSON event, failing after two seconds.
func ReadEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event map[string]interface{}
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &event), "frame %q", raw)
	return event
}

// ExpectNoEvent fails if an event arrives within timeout.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no event, got %s", raw)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	t.Fatalf("unexpected error while waiting for absence of event: %v", err)
}

// CloseWebSocket sends a normal close frame and closes conn.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, timeout, 10*time.Millisecond)
}
