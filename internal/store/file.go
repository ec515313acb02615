package store

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/collabchat/internal/domain"
)

// File names inside the data directory.
const (
	ChatFileName     = "chat.txt"
	DocumentFileName = "document.txt"
)

// FileStore keeps the chat history as newline-delimited
// "[timestamp] author: text" lines and the document as a raw text file.
type FileStore struct {
	dir          string
	chatPath     string
	documentPath string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data directory %s", dir)
	}
	return &FileStore{
		dir:          dir,
		chatPath:     filepath.Join(dir, ChatFileName),
		documentPath: filepath.Join(dir, DocumentFileName),
	}, nil
}

// ChatPath returns the path of the chat record.
func (s *FileStore) ChatPath() string { return s.chatPath }

// DocumentPath returns the path of the document record.
func (s *FileStore) DocumentPath() string { return s.documentPath }

// LoadChatHistory implements Store.
func (s *FileStore) LoadChatHistory() ([]domain.ChatMessage, error) {
	history, _, err := OpenOrInit(ChatFileName,
		func() ([]domain.ChatMessage, error) {
			data, err := os.ReadFile(s.chatPath)
			if err != nil {
				return nil, err
			}
			return parseHistory(ChatFileName, string(data)), nil
		},
		s.PersistChatHistory,
		[]domain.ChatMessage{},
	)
	return history, err
}

// LoadDocument implements Store.
func (s *FileStore) LoadDocument() (string, error) {
	content, _, err := OpenOrInit(DocumentFileName,
		func() (string, error) {
			data, err := os.ReadFile(s.documentPath)
			return string(data), err
		},
		s.PersistDocument,
		"",
	)
	return content, err
}

// PersistChatHistory implements Store.
func (s *FileStore) PersistChatHistory(history []domain.ChatMessage) error {
	if err := s.writeFile(s.chatPath, []byte(domain.FormatHistory(history))); err != nil {
		return errors.Wrap(err, "save chat history")
	}
	log.Debug().Int("messages", len(history)).Msg("Chat history saved")
	return nil
}

// PersistDocument implements Store.
func (s *FileStore) PersistDocument(content string) error {
	if err := s.writeFile(s.documentPath, []byte(content)); err != nil {
		return errors.Wrap(err, "save document content")
	}
	log.Debug().Int("bytes", len(content)).Msg("Document content saved")
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

// writeFile replaces path with data through a synced temp file and a rename,
// so a crash mid-write leaves either the old or the new record.
func (s *FileStore) writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
