package server

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/collabchat/internal/domain"
)

// Wire event types.
const (
	TypeSystem             = "system"
	TypeDocument           = "document"
	TypeChatHistory        = "chatHistory"
	TypeMessage            = "message"
	TypeSystemNotification = "systemNotification"
	TypeBroadcast          = "broadcast"
	TypeError              = "error"
)

// Messages sent to clients.
const (
	WelcomeMessage       = "Welcome to WebSocket server!"
	DisconnectNotice     = "A user has disconnected."
	ErrMsgUnknownType    = "Unknown message type"
	ErrMsgProcessing     = "Error processing message"
	ErrMsgInvalidMessage = "Invalid message format"
	ErrMsgSaveChat       = "Failed to save chat history"
	ErrMsgSaveDocument   = "Failed to save document content"
	ErrMsgRateLimited    = "Rate limit exceeded"
)

// InboundEvent is any client-to-server frame. Which fields matter depends on Type.
type InboundEvent struct {
	Type      string `json:"type"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// SystemEvent carries {type:"system"|"error", message}.
type SystemEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// DocumentEvent carries the full document content.
type DocumentEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ChatHistoryEvent carries the complete chat history.
type ChatHistoryEvent struct {
	Type    string               `json:"type"`
	History []domain.ChatMessage `json:"history"`
}

// BroadcastEvent carries one chat line to every connection.
type BroadcastEvent struct {
	Type      string `json:"type"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

func newBroadcastEvent(m domain.ChatMessage) BroadcastEvent {
	return BroadcastEvent{Type: TypeBroadcast, Author: m.Author, Text: m.Text, Timestamp: m.Timestamp}
}

func newErrorEvent(message string) SystemEvent {
	return SystemEvent{Type: TypeError, Message: message}
}

// encode marshals an outbound event. The event types above cannot fail to
// marshal, so a failure is logged and yields nil.
func encode(v interface{}) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Error encoding outbound event")
		return nil
	}
	return payload
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
