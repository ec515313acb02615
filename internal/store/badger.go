package store

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/collabchat/internal/domain"
)

var (
	chatKey     = []byte("chat/history")
	documentKey = []byte("document/content")
)

// BadgerStore keeps both records as single values in an embedded Badger
// database. The chat value uses the same line layout as FileStore.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at path with synchronous writes.
func NewBadgerStore(path string) (*BadgerStore, error) {
	return OpenBadger(badger.DefaultOptions(path).WithSyncWrites(true))
}

// OpenBadger opens a Badger database with opts. Badger's own logging is
// routed to zerolog.
func OpenBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts.WithLogger(badgerLogger{}))
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}
	return &BadgerStore{db: db}, nil
}

// LoadChatHistory implements Store.
func (s *BadgerStore) LoadChatHistory() ([]domain.ChatMessage, error) {
	history, _, err := OpenOrInit(string(chatKey),
		func() ([]domain.ChatMessage, error) {
			data, err := s.get(chatKey)
			if err != nil {
				return nil, err
			}
			return parseHistory(string(chatKey), data), nil
		},
		s.PersistChatHistory,
		[]domain.ChatMessage{},
	)
	return history, err
}

// LoadDocument implements Store.
func (s *BadgerStore) LoadDocument() (string, error) {
	content, _, err := OpenOrInit(string(documentKey),
		func() (string, error) { return s.get(documentKey) },
		s.PersistDocument,
		"",
	)
	return content, err
}

// PersistChatHistory implements Store.
func (s *BadgerStore) PersistChatHistory(history []domain.ChatMessage) error {
	if err := s.set(chatKey, domain.FormatHistory(history)); err != nil {
		return errors.Wrap(err, "save chat history")
	}
	log.Debug().Int("messages", len(history)).Msg("Chat history saved")
	return nil
}

// PersistDocument implements Store.
func (s *BadgerStore) PersistDocument(content string) error {
	if err := s.set(documentKey, content); err != nil {
		return errors.Wrap(err, "save document content")
	}
	log.Debug().Int("bytes", len(content)).Msg("Document content saved")
	return nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) get(key []byte) (string, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return string(value), err
}

func (s *BadgerStore) set(key []byte, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte(value))
	})
}

type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	log.Error().Str("component", "badger").Msg(trimLog(format, args...))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	log.Warn().Str("component", "badger").Msg(trimLog(format, args...))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	log.Debug().Str("component", "badger").Msg(trimLog(format, args...))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	log.Trace().Str("component", "badger").Msg(trimLog(format, args...))
}

func trimLog(format string, args ...interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
