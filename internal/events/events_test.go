package events

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalogEvent(t *testing.T) {
	ev := NewCatalogEvent("genre", ActionDeleted, 4)
	assert.Equal(t, "genre.deleted", ev.Type)
	assert.Equal(t, "genre", ev.Entity)
	assert.Equal(t, int64(4), ev.ID)
	assert.False(t, ev.At.IsZero())

	// nil publisher is a no-op
	Publish(nil, "genre", ActionCreated, 1)
}

func TestTCPFeedReceivesEvents(t *testing.T) {
	hub := NewHub(nil)
	srv := NewServer("127.0.0.1:0", hub)
	go func() { _ = srv.Run() }()
	t.Cleanup(func() { _ = srv.Close() })

	require.Eventually(t, func() bool { return srv.ListenAddr() != nil }, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", srv.ListenAddr().String())
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	r := bufio.NewReader(conn)
	welcome, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, welcome, `"welcome"`)

	require.Eventually(t, func() bool { return hub.Stats().TCPClients == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.BroadcastJSON(NewCatalogEvent("content", ActionCreated, 42))

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	var ev CatalogEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(line)), &ev))
	assert.Equal(t, "content.created", ev.Type)
	assert.Equal(t, int64(42), ev.ID)
}

func TestWebSocketFeedReceivesEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil)
	r := gin.New()
	r.GET("/ws", WSHandler(hub))
	ts := httptest.NewServer(r)
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))

	_, welcome, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(welcome), "websocket")

	require.Eventually(t, func() bool { return hub.Stats().WSClients == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Publish(NewCatalogEvent("plan", ActionUpdated, 3))

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	var ev CatalogEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "plan.updated", ev.Type)
}

func TestPublishKeepsOrder(t *testing.T) {
	hub := NewHub(nil)
	t.Cleanup(hub.Close)

	client, server := net.Pipe()
	defer client.Close()
	hub.Add(server)
	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))

	const n = 100
	for i := 1; i <= n; i++ {
		action := ActionCreated
		if i%2 == 0 {
			action = ActionDeleted
		}
		hub.Publish(NewCatalogEvent("content", action, int64((i+1)/2)))
	}

	r := bufio.NewReader(client)
	for i := 1; i <= n; i++ {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		var ev CatalogEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(line)), &ev))
		assert.Equal(t, int64((i+1)/2), ev.ID)
		if i%2 == 0 {
			assert.Equal(t, "content.deleted", ev.Type, "event %d", i)
		} else {
			assert.Equal(t, "content.created", ev.Type, "event %d", i)
		}
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	hub := NewHub(nil)
	hub.Close()
	hub.Close()
	hub.Publish(NewCatalogEvent("genre", ActionCreated, 1))
	assert.Equal(t, 0, hub.Stats().TCPClients)
}
