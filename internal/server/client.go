package server

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/collabchat/internal/config"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ClientOptions tunes a single connection.
type ClientOptions struct {
	MaxMessageSize int64
	SendBufferSize int
	RateLimit      config.RateLimitConfig
}

// Client is one live websocket connection. It carries no identity beyond
// the handle itself; the id only tags log lines.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	router         *Router
	addr           string
	closed         bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	logger         zerolog.Logger
}

// NewClient wraps conn. conn may be nil in tests that only exercise the
// registry and the router.
func NewClient(conn *websocket.Conn, router *Router, addr string, opts ClientOptions) *Client {
	if opts.SendBufferSize < 3 {
		opts.SendBufferSize = 3
	}
	if conn != nil && opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}

	id := uuid.NewString()
	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, opts.SendBufferSize),
		router:         router,
		addr:           addr,
		maxMessageSize: opts.MaxMessageSize,
		rateLimiter:    newRateLimiter(opts.RateLimit, time.Now),
		logger:         log.With().Str("conn_id", id).Str("addr", addr).Logger(),
	}
}

// GetSendChan returns the client's outbound queue.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// enqueue queues payload before the client is registered.
func (c *Client) enqueue(payload []byte) {
	if payload == nil {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn().Msg("Send buffer full while queueing snapshot")
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn().Err(err).Msg("Error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn().Err(err).Msg("Error setting read deadline in pong handler")
		}
		return nil
	})
}

// logReadError logs why the read loop is ending.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn().Int64("limit", c.maxMessageSize).Msg("Message exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.logger.Info().Err(err).Msg("Client disconnected")
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Info().Err(err).Msg("Client connection closed")
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.logger.Warn().Err(err).Msg("Unexpected WebSocket close")
	default:
		c.logger.Warn().Err(err).Msg("WebSocket read error")
	}
}

// checkRateLimit reports whether the next frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter == nil {
		return true
	}
	ok, wait := c.rateLimiter.take()
	if !ok {
		c.logger.Warn().Dur("retry_in", wait).Msg("Rate limit exceeded; discarding message")
	}
	return ok
}

func (c *Client) readPump() {
	defer func() {
		c.router.Disconnect(c)
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			c.router.Reject(c, ErrMsgRateLimited)
			continue
		}

		c.router.Handle(c, rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn().Err(err).Msg("Error closing connection")
	}
}

// handleMessage writes one outbound event per frame and returns false if the
// connection should be closed.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn().Err(err).Msg("Error setting write deadline")
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn().Err(err).Msg("Error writing message")
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn().Err(err).Msg("Error writing close message")
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn().Err(err).Msg("Error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing ping message")
		return false
	}
	return true
}
