package store

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/collabchat/internal/domain"
)

func newBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadger(badger.DefaultOptions("").WithInMemory(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStoreSelfHeals(t *testing.T) {
	s := newBadgerStore(t)

	history, err := s.LoadChatHistory()
	require.NoError(t, err)
	assert.Empty(t, history)

	content, err := s.LoadDocument()
	require.NoError(t, err)
	assert.Equal(t, "", content)

	stored, err := s.get(chatKey)
	require.NoError(t, err, "chat record should be initialized")
	assert.Equal(t, "", stored)
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	s := newBadgerStore(t)
	history := []domain.ChatMessage{
		{Author: "alice", Text: "hi", Timestamp: "t1"},
		{Author: "bob", Text: "yo", Timestamp: "t2"},
	}

	require.NoError(t, s.PersistChatHistory(history))
	require.NoError(t, s.PersistDocument("draft v2"))

	loaded, err := s.LoadChatHistory()
	require.NoError(t, err)
	assert.Equal(t, history, loaded)

	content, err := s.LoadDocument()
	require.NoError(t, err)
	assert.Equal(t, "draft v2", content)
}

func TestBadgerStoreDropsUnparseableLines(t *testing.T) {
	s := newBadgerStore(t)
	require.NoError(t, s.set(chatKey, "[t1] alice: hi\n???"))

	history, err := s.LoadChatHistory()

	require.NoError(t, err)
	assert.Equal(t, []domain.ChatMessage{{Author: "alice", Text: "hi", Timestamp: "t1"}}, history)
}
