package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Conn. Inbound frames are pushed with push; sent
// payloads are recorded in order.
type fakeConn struct {
	addr   string
	frames chan []byte
	done   chan struct{}

	mu       sync.Mutex
	sent     [][]byte
	closed   bool
	failSend bool
	closes   int
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{
		addr:   addr,
		frames: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.failSend {
		return fmt.Errorf("%w: %s is closed", ErrDeliveryFailed, c.addr)
	}
	c.sent = append(c.sent, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) RemoteAddr() string { return c.addr }

func (c *fakeConn) push(raw string) { c.frames <- []byte(raw) }

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) payloads() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, p := range c.payloads() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(p, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, e := range c.events(t) {
		out = append(out, e["type"].(string))
	}
	return out
}

func (c *fakeConn) waitForCount(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.payloads()) >= n },
		2*time.Second, 5*time.Millisecond, "%s expected %d frames", c.addr, n)
}

var fixedTime = time.Date(2026, 10, 15, 13, 4, 5, 0, time.Local)

func newTestHub(opts ...Option) *Hub {
	opts = append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)
	return NewHub(zerolog.Nop(), opts...)
}

// connect serves conn on hub and waits until its own session has been
// announced to it (welcome plus user count).
func connect(t *testing.T, hub *Hub, conn *fakeConn) {
	t.Helper()
	before := len(conn.payloads())
	go hub.Serve(conn)
	conn.waitForCount(t, before+2)
}
