// Package store persists the chat history and the shared document.
//
// Both records are rewritten in full on every save. That keeps the durable
// copy trivially consistent with memory at the cost of O(n) work per chat
// append, which is a known scaling limit for large histories.
package store

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/collabchat/internal/domain"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Store is the durable side of the chat history and the document.
//
// Load methods self-heal: an absent or unreadable record is re-initialised
// to its empty value and that empty value is returned. They only fail when
// the repair write itself fails.
type Store interface {
	LoadChatHistory() ([]domain.ChatMessage, error)
	LoadDocument() (string, error)
	PersistChatHistory(history []domain.ChatMessage) error
	PersistDocument(content string) error
	Close() error
}

// Open returns the store for backend. dataDir is used by the file backend,
// badgerPath by the badger backend.
func Open(backend, dataDir, badgerPath string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dataDir)
	case BackendBadger:
		return NewBadgerStore(badgerPath)
	default:
		return nil, errors.Errorf("unknown store backend %q", backend)
	}
}

// OpenOrInit reads a record through read. When read fails the record is
// treated as absent or corrupt: def is written back through write and
// returned with repaired set.
func OpenOrInit[T any](name string, read func() (T, error), write func(T) error, def T) (value T, repaired bool, err error) {
	value, readErr := read()
	if readErr == nil {
		return value, false, nil
	}

	log.Warn().Err(readErr).Str("record", name).Msg("Record missing or unreadable, initializing as empty")
	if err := write(def); err != nil {
		return def, false, errors.Wrapf(err, "initialize %s", name)
	}
	return def, true, nil
}

func parseHistory(name, data string) []domain.ChatMessage {
	history, dropped := domain.ParseHistory(data)
	for _, line := range dropped {
		log.Warn().Str("record", name).Str("line", line).Msg("Dropping unparseable chat line")
	}
	return history
}
