// Package state holds the authoritative in-memory chat history and document.
//
// Mutations are serialized by a writer lock that is held across the disk
// write: the candidate value is persisted first and only becomes visible once
// the write succeeded, so memory never runs ahead of the durable copy on a
// reported failure. Publishing the committed value takes the state lock only
// briefly, so readers and admissions never wait on the disk. Subscribers are
// told about each committed change while that lock is held, which makes their
// observation order equal to the commit order.
package state

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/collabchat/internal/domain"
	"github.com/Tyrowin/collabchat/internal/store"
)

// ChangeKind identifies what a committed Change touched.
type ChangeKind int

const (
	// MessageAppended is emitted after a chat message is durably appended.
	MessageAppended ChangeKind = iota
	// DocumentReplaced is emitted after the document is durably replaced.
	DocumentReplaced
)

// Change describes one committed mutation.
type Change struct {
	Kind     ChangeKind
	Message  domain.ChatMessage
	Document string
}

// Snapshot is the full state at a single point in the commit order.
type Snapshot struct {
	History  []domain.ChatMessage
	Document string
}

// Subscriber observes committed changes. It runs with the manager's state
// lock held and must not call back into the Manager.
type Subscriber func(Change)

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used to stamp messages that arrive without a
// timestamp.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager is the single mutation boundary for the chat history and document.
type Manager struct {
	// writeMu serializes mutations, including their disk writes.
	writeMu sync.Mutex
	// mu guards the published state and the subscriber list.
	mu          sync.RWMutex
	store       store.Store
	now         func() time.Time
	history     []domain.ChatMessage
	document    string
	subscribers []Subscriber
}

// New loads both records from s and returns a ready Manager.
func New(s store.Store, opts ...Option) (*Manager, error) {
	history, err := s.LoadChatHistory()
	if err != nil {
		return nil, errors.Wrap(err, "load chat history")
	}
	document, err := s.LoadDocument()
	if err != nil {
		return nil, errors.Wrap(err, "load document")
	}

	log.Info().Int("messages", len(history)).Int("document_bytes", len(document)).Msg("State loaded")
	m := &Manager{
		store:    s,
		now:      time.Now,
		history:  history,
		document: document,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Subscribe registers fn for every change committed after this call.
func (m *Manager) Subscribe(fn Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// AppendMessage validates and durably appends a chat message, stamping it
// with the current time when timestamp is empty. It returns an error matching
// domain.ErrValidation or domain.ErrPersistence; in both cases the history is
// unchanged.
func (m *Manager) AppendMessage(author, text, timestamp string) (domain.ChatMessage, error) {
	msg := domain.ChatMessage{Author: author, Text: text, Timestamp: timestamp}
	if err := msg.Validate(); err != nil {
		return domain.ChatMessage{}, err
	}
	if msg.Timestamp == "" {
		msg.Timestamp = domain.Stamp(m.now())
	}
	if err := msg.CheckRecord(); err != nil {
		return domain.ChatMessage{}, err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	// only writers replace history, and they hold writeMu
	next := make([]domain.ChatMessage, len(m.history), len(m.history)+1)
	copy(next, m.history)
	next = append(next, msg)

	if err := m.store.PersistChatHistory(next); err != nil {
		log.Error().Err(err).Str("author", author).Msg("Error saving chat history")
		return domain.ChatMessage{}, errors.Wrap(domain.ErrPersistence, err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = next
	m.notify(Change{Kind: MessageAppended, Message: msg})
	return msg, nil
}

// SetDocument durably replaces the document. Last write wins; concurrent
// callers are applied in the order they acquire the lock.
func (m *Manager) SetDocument(content string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.store.PersistDocument(content); err != nil {
		log.Error().Err(err).Msg("Error saving document content")
		return errors.Wrap(domain.ErrPersistence, err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.document = content
	m.notify(Change{Kind: DocumentReplaced, Document: content})
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// View runs fn with a snapshot while holding off every commit, so anything fn
// registers is guaranteed to observe each later change through a subscriber
// and no earlier one. A write still on its way to disk does not delay View;
// its change arrives through the subscribers once committed.
func (m *Manager) View(fn func(Snapshot)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.snapshotLocked())
}

// ChatText renders the history as "[timestamp] author: text" lines.
func (m *Manager) ChatText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.FormatHistory(m.history)
}

// DocumentText returns the raw document content.
func (m *Manager) DocumentText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.document
}

func (m *Manager) snapshotLocked() Snapshot {
	history := make([]domain.ChatMessage, len(m.history))
	copy(history, m.history)
	return Snapshot{History: history, Document: m.document}
}

func (m *Manager) notify(change Change) {
	for _, fn := range m.subscribers {
		fn(change)
	}
}
