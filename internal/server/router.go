package server

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/Tyrowin/collabchat/internal/domain"
	"github.com/Tyrowin/collabchat/internal/state"
)

// Router dispatches inbound events to the State Manager and fans committed
// changes out through the Hub. Every failure is answered to the originating
// client only.
type Router struct {
	state            *state.Manager
	hub              *Hub
	notifyDisconnect bool
	now              func() time.Time
}

// NewRouter wires st to hub: every change st commits from now on is
// broadcast to all registered clients in commit order.
func NewRouter(st *state.Manager, hub *Hub, notifyDisconnect bool) *Router {
	r := &Router{
		state:            st,
		hub:              hub,
		notifyDisconnect: notifyDisconnect,
		now:              time.Now,
	}
	st.Subscribe(r.fanOut)
	return r
}

// fanOut runs under the State Manager's write lock, after the change is durable.
func (r *Router) fanOut(change state.Change) {
	switch change.Kind {
	case state.MessageAppended:
		r.hub.Broadcast(encode(newBroadcastEvent(change.Message)))
	case state.DocumentReplaced:
		r.hub.Broadcast(encode(DocumentEvent{Type: TypeDocument, Content: change.Document}))
	}
}

// Handle processes one raw frame from sender.
func (r *Router) Handle(sender *Client, raw []byte) {
	event, err := decodeEvent(raw)
	if err != nil {
		sender.logger.Warn().Err(err).Msg("Error processing WebSocket message")
		r.Reject(sender, ErrMsgProcessing)
		return
	}

	sender.logger.Debug().Str("type", event.Type).Msg("Received message")

	switch event.Type {
	case TypeMessage:
		r.handleChatMessage(sender, event)
	case TypeDocument:
		r.handleDocument(sender, event)
	case TypeSystemNotification:
		r.NotifySystem(event.Text, event.Timestamp)
	default:
		sender.logger.Warn().Err(errors.Wrapf(domain.ErrProtocol, "type %q", event.Type)).Msg("Unknown message type")
		r.Reject(sender, ErrMsgUnknownType)
	}
}

// AppendMessage appends a chat message on behalf of a non-websocket caller.
// A successful append is broadcast like any other; an empty timestamp is
// stamped by the State Manager.
func (r *Router) AppendMessage(author, text, timestamp string) (domain.ChatMessage, error) {
	return r.state.AppendMessage(author, text, timestamp)
}

// NotifySystem broadcasts a system chat line without touching state.
func (r *Router) NotifySystem(text, timestamp string) {
	r.hub.Broadcast(encode(BroadcastEvent{
		Type:      TypeBroadcast,
		Author:    domain.SystemAuthor,
		Text:      text,
		Timestamp: r.stamp(timestamp),
	}))
}

// Reject answers sender alone with an error event.
func (r *Router) Reject(sender *Client, message string) {
	r.hub.SendTo(sender, encode(newErrorEvent(message)))
}

// Disconnect unregisters client and, when enabled, tells the remaining
// clients. Calling it again for the same client does nothing.
func (r *Router) Disconnect(client *Client) {
	if !r.hub.Remove(client) {
		return
	}
	if r.notifyDisconnect && !r.hub.closing() {
		r.NotifySystem(DisconnectNotice, "")
	}
}

func (r *Router) handleChatMessage(sender *Client, event InboundEvent) {
	_, err := r.AppendMessage(event.Author, event.Text, event.Timestamp)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrValidation):
		sender.logger.Info().Err(err).Msg("Rejected chat message")
		r.Reject(sender, ErrMsgInvalidMessage)
	default:
		r.Reject(sender, ErrMsgSaveChat)
	}
}

func (r *Router) handleDocument(sender *Client, event InboundEvent) {
	if err := r.state.SetDocument(event.Content); err != nil {
		r.Reject(sender, ErrMsgSaveDocument)
	}
}

func (r *Router) stamp(timestamp string) string {
	if timestamp != "" {
		return timestamp
	}
	return domain.Stamp(r.now())
}

func decodeEvent(raw []byte) (InboundEvent, error) {
	var event InboundEvent
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return event, errors.Wrap(domain.ErrProtocol, "null payload")
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		return event, errors.Wrap(domain.ErrProtocol, err.Error())
	}
	return event, nil
}
