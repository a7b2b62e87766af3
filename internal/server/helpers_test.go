package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relaychat/internal/chat"
	"github.com/Tyrowin/relaychat/internal/config"
)

var fixedTime = time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.SendBuffer = 16
	cfg.PingPeriod = 500 * time.Millisecond
	cfg.PongWait = time.Second
	cfg.WriteWait = time.Second
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

// newTestServer starts the chat routes of a Server on an httptest listener.
func newTestServer(t *testing.T, cfg config.Config) (*Server, *httptest.Server) {
	t.Helper()
	s := New(cfg, zerolog.Nop(), chat.WithClock(func() time.Time { return fixedTime }))
	ts := httptest.NewServer(s.SetupRoutes())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Hub().Shutdown(time.Second)
	})
	return s, ts
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(url), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, msgType)

	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event), "frame must hold exactly one JSON event: %s", data)
	return event
}

// joinAs dials url and consumes the welcome and the user count that follow
// a successful join. It returns the connection and the assigned user id.
func joinAs(t *testing.T, url string) (*websocket.Conn, float64) {
	t.Helper()
	conn := dial(t, url)

	welcome := readEvent(t, conn)
	require.Equal(t, chat.TypeWelcome, welcome["type"])
	count := readEvent(t, conn)
	require.Equal(t, chat.TypeUserCount, count["type"])

	return conn, welcome["userId"].(float64)
}

func expectNoEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", data)
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}
