package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Tyrowin/collabchat/internal/domain"
	"github.com/Tyrowin/collabchat/internal/state"
)

// Hub is the connection registry. It admits clients with a consistent
// snapshot, removes them on disconnect, and delivers payloads to every
// registered client on a best-effort basis.
type Hub struct {
	clients   map[*Client]struct{}
	mutex     sync.RWMutex
	state     *state.Manager
	wg        sync.WaitGroup
	lifecycle sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	dropped   atomic.Int64
}

var errSendBufferFull = errors.Wrap(domain.ErrTransport, "send buffer full")

// NewHub creates a Hub that snapshots st when admitting clients.
func NewHub(st *state.Manager) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients: make(map[*Client]struct{}),
		state:   st,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Admit registers client and queues the welcome notice, the document
// snapshot and the chat history snapshot for it, in that order. Both happen
// while mutations are held off, so every later change reaches the client as
// a broadcast and every earlier one is part of its snapshot.
func (h *Hub) Admit(client *Client) {
	h.state.View(func(snap state.Snapshot) {
		client.enqueue(encode(SystemEvent{Type: TypeSystem, Message: WelcomeMessage}))
		client.enqueue(encode(DocumentEvent{Type: TypeDocument, Content: snap.Document}))
		client.enqueue(encode(ChatHistoryEvent{Type: TypeChatHistory, History: snap.History}))

		h.mutex.Lock()
		client.closed = false
		h.clients[client] = struct{}{}
		clientCount := len(h.clients)
		h.mutex.Unlock()

		client.logger.Info().Int("clients", clientCount).Msg("Client registered")
	})
}

// Serve admits client and starts its pumps. It returns false when the hub is
// shutting down, in which case the connection is closed instead.
func (h *Hub) Serve(client *Client) bool {
	h.lifecycle.Lock()
	if h.ctx.Err() != nil {
		h.lifecycle.Unlock()
		client.closeConnection()
		return false
	}
	h.wg.Add(2)
	h.lifecycle.Unlock()

	h.Admit(client)
	if h.closing() {
		// shutdown raced the admission; let the pumps unwind
		client.closeConnection()
	}

	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
	return true
}

// Remove unregisters client and closes its send queue. It reports whether the
// client was registered; removing twice is a no-op.
func (h *Hub) Remove(client *Client) bool {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return false
	}
	delete(h.clients, client)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	client.logger.Info().Int("clients", clientCount).Msg("Client unregistered")
	return true
}

// ForEach calls fn once per registered client that is still writable. A
// panic inside fn is recovered and logged so the remaining clients are
// still visited.
func (h *Hub) ForEach(fn func(*Client)) {
	for _, client := range h.getClientSnapshot() {
		if !h.isWritable(client) {
			continue
		}
		h.visit(client, fn)
	}
}

// Broadcast queues payload for every registered client and returns how many
// accepted it. Clients whose queue is full miss this payload but stay
// registered.
func (h *Hub) Broadcast(payload []byte) int {
	delivered := 0
	h.ForEach(func(client *Client) {
		if h.SendTo(client, payload) {
			delivered++
		}
	})
	log.Debug().Int("delivered", delivered).Msg("Broadcast complete")
	return delivered
}

// SendTo queues payload for a single registered client.
func (h *Hub) SendTo(client *Client, payload []byte) bool {
	if payload == nil {
		return false
	}
	err := h.safeSend(client, payload)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errSendBufferFull):
		// the client stays registered but never sees this event
		client.logger.Error().Err(err).Int64("dropped_total", h.dropped.Add(1)).Msg("Dropping outbound message")
	default:
		client.logger.Warn().Err(err).Msg("Dropping outbound message")
	}
	return false
}

// Dropped returns how many events were discarded because a client's send
// buffer was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) closing() bool {
	return h.ctx.Err() != nil
}

func (h *Hub) visit(client *Client, fn func(*Client)) {
	defer func() {
		if r := recover(); r != nil {
			client.logger.Error().Interface("panic", r).Msg("Recovered from panic while visiting client")
		}
	}()
	fn(client)
}

func (h *Hub) isWritable(client *Client) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	_, exists := h.clients[client]
	return exists && !client.closed
}

func (h *Hub) safeSend(client *Client, message []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(domain.ErrTransport, fmt.Sprintf("send panicked: %v", r))
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return errors.Wrap(domain.ErrTransport, "client not registered")
	}

	select {
	case client.send <- message:
		return nil
	default:
		return errSendBufferFull
	}
}

// getClientSnapshot returns a thread-safe snapshot of all current clients
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return lo.Keys(h.clients)
}

// Run blocks until ctx is cancelled or Shutdown is called, then closes every
// client connection.
func (h *Hub) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		h.cancel()
	case <-h.ctx.Done():
	}
	h.closeOnce.Do(h.shutdownClients)
}

// shutdownClients closes all active client connections; the read pumps then
// unregister them.
func (h *Hub) shutdownClients() {
	log.Info().Msg("Shutting down all client connections...")

	clients := h.getClientSnapshot()
	for _, client := range clients {
		client.closeConnection()
	}

	log.Info().Int("clients", len(clients)).Msg("Closed client connections")
}

// Shutdown closes every connection and waits for the client goroutines to
// finish, or for timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Info().Msg("Initiating hub shutdown...")

	h.lifecycle.Lock()
	h.cancel()
	h.lifecycle.Unlock()
	h.closeOnce.Do(h.shutdownClients)

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Int64("dropped_events", h.Dropped()).Msg("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Warn().Msg("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
