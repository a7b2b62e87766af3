package server

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/relaychat/internal/chat"
	"github.com/Tyrowin/relaychat/internal/config"
)

// Client is one WebSocket connection. It implements chat.Conn: the session
// goroutine reads through ReadFrame while a write pump drains the buffered
// send channel.
type Client struct {
	id          uuid.UUID
	conn        *websocket.Conn
	send        chan []byte
	addr        string
	log         zerolog.Logger
	rateLimiter *rateLimiter
	rateLimit   config.RateLimitConfig

	maxMessageSize int64
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration

	mu     sync.Mutex
	closed bool
}

var _ chat.Conn = (*Client)(nil)

// NewClient creates a Client for conn using the limits and keepalive timings
// from cfg. The write pump is not running until Start is called.
func NewClient(conn *websocket.Conn, addr string, cfg config.Config, log zerolog.Logger) *Client {
	id := uuid.New()
	c := &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, cfg.SendBuffer),
		addr:           addr,
		log:            log.With().Str("component", "client").Str("conn_id", id.String()).Str("remote_addr", addr).Logger(),
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		maxMessageSize: cfg.MaxMessageSize,
		writeWait:      cfg.WriteWait,
		pongWait:       cfg.PongWait,
		pingPeriod:     cfg.PingPeriod,
	}
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
		c.setupReadConnection()
	}
	return c
}

// Start launches the write pump.
func (c *Client) Start() {
	go c.writePump()
}

// ConnID returns the random id used to correlate this connection in logs.
func (c *Client) ConnID() string {
	return c.id.String()
}

// RemoteAddr returns the peer address.
func (c *Client) RemoteAddr() string {
	return c.addr
}

// Send queues payload for the write pump. A full queue means the peer is not
// keeping up; the client is closed and the delivery fails.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: connection to %s is closed", chat.ErrDeliveryFailed, c.addr)
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.log.Warn().Int("buffer", cap(c.send)).Msg("Send buffer full, dropping slow client")
		c.closeLocked()
		return fmt.Errorf("%w: send buffer full for %s", chat.ErrDeliveryFailed, c.addr)
	}
}

// Close stops accepting new payloads, lets the write pump flush what is
// queued followed by a close frame, and unblocks any pending ReadFrame. It
// is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		if err := c.conn.SetReadDeadline(time.Now()); err != nil && !isExpectedCloseError(err) {
			c.log.Debug().Err(err).Msg("Error interrupting reader")
		}
	}
}

// ReadFrame returns the next inbound message. Frames over the rate limit are
// discarded without ending the session; any read error does end it.
func (c *Client) ReadFrame() ([]byte, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return nil, err
		}

		if !c.checkRateLimit() {
			continue
		}
		return data, nil
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("Error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
			c.log.Warn().Err(err).Msg("Error setting read deadline in pong handler")
		}
		return nil
	})
}

// logReadError logs a read failure at a level matching how expected it is.
func (c *Client) logReadError(err error) {
	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn().Int64("max_message_size", c.maxMessageSize).Msg("Message exceeded maximum size")
		return
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		c.log.Debug().Err(err).Msg("Client disconnected")
		return
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) || c.isClosed() {
		c.log.Debug().Err(err).Msg("Client connection closed")
		return
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Info().Err(err).Msg("Unexpected WebSocket close")
		return
	}

	c.log.Warn().Err(err).Msg("WebSocket read error")
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn().Int("burst", c.rateLimit.Burst).Dur("interval", c.rateLimit.RefillInterval).
			Msg("Rate limit exceeded, discarding message")
		return false
	}
	return true
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("Recovered from panic in write pump")
		}
		ticker.Stop()
		_ = c.Close()
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

// closeConnection closes the WebSocket connection, logging only unexpected errors
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Debug().Err(err).Msg("Error closing connection")
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		c.log.Debug().Err(err).Msg("Error setting write deadline")
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !isExpectedCloseError(err) {
		c.log.Debug().Err(err).Msg("Error writing close message")
	}
	return false
}

// writeTextMessage writes one event per text frame. Events already queued
// are written right after, each in its own frame, under the same deadline.
func (c *Client) writeTextMessage(message []byte) bool {
	if !c.writeFrame(message) {
		return false
	}

	n := len(c.send)
	for i := 0; i < n; i++ {
		queued, ok := <-c.send
		if !ok {
			return c.writeCloseMessage()
		}
		if !c.writeFrame(queued) {
			return false
		}
	}
	return true
}

func (c *Client) writeFrame(message []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Info().Err(err).Msg("Error writing message")
		}
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		c.log.Debug().Err(err).Msg("Error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Info().Err(err).Msg("Error writing ping message")
		}
		return false
	}
	return true
}
