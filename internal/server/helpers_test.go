package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/collabchat/internal/config"
	"github.com/Tyrowin/collabchat/internal/domain"
	"github.com/Tyrowin/collabchat/internal/state"
	"github.com/Tyrowin/collabchat/internal/store"
)

// toggleStore wraps a real store and can be told to fail writes. When gate
// is set, writes signal started and then block until gate is closed.
type toggleStore struct {
	*store.FileStore
	failChat bool
	failDoc  bool
	started  chan struct{}
	gate     chan struct{}
}

func (s *toggleStore) hold() {
	if s.gate == nil {
		return
	}
	s.started <- struct{}{}
	<-s.gate
}

func (s *toggleStore) PersistChatHistory(history []domain.ChatMessage) error {
	s.hold()
	if s.failChat {
		return errors.New("disk full")
	}
	return s.FileStore.PersistChatHistory(history)
}

func (s *toggleStore) PersistDocument(content string) error {
	s.hold()
	if s.failDoc {
		return errors.New("disk full")
	}
	return s.FileStore.PersistDocument(content)
}

type fixture struct {
	store   *toggleStore
	manager *state.Manager
	hub     *Hub
	router  *Router
	cfg     *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Sanitize()

	fs, err := store.NewFileStore(cfg.DataDir)
	require.NoError(t, err)
	ts := &toggleStore{FileStore: fs}

	clock := func() time.Time { return time.Date(2024, 3, 4, 5, 6, 7, 8_000_000, time.UTC) }
	manager, err := state.New(ts, state.WithClock(clock))
	require.NoError(t, err)

	hub := NewHub(manager)
	router := NewRouter(manager, hub, true)
	router.now = clock

	return &fixture{store: ts, manager: manager, hub: hub, router: router, cfg: cfg}
}

func (f *fixture) newClient(name string) *Client {
	return NewClient(nil, f.router, name, ClientOptions{
		SendBufferSize: 32,
		RateLimit:      config.RateLimitConfig{Burst: 5, RefillInterval: time.Second},
	})
}

// admit registers a new client and drains its three snapshot events.
func (f *fixture) admit(t *testing.T, name string) *Client {
	t.Helper()
	c := f.newClient(name)
	f.hub.Admit(c)
	for i := 0; i < 3; i++ {
		nextEvent(t, c)
	}
	return c
}

func nextEvent(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case raw, ok := <-c.GetSendChan():
		require.True(t, ok, "send channel closed")
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &event))
		return event
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event on %s", c.addr)
		return nil
	}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw, ok := <-c.GetSendChan():
		if ok {
			t.Fatalf("unexpected event on %s: %s", c.addr, raw)
		}
	default:
	}
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
