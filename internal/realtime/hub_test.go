package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisegate/internal/logger"
	apperrors "wisegate/pkg/errors"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(logger.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastsEventFrame(t *testing.T) {
	hub, _ := startHub(t)
	conn := dial(t, hub)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), "mqtt_data", map[string]any{"temp": 25.0}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type  string         `json:"type"`
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
		TS    string         `json:"ts"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, "mqtt_data", msg.Event)
	assert.Equal(t, 25.0, msg.Data["temp"])
	_, err = time.Parse(time.RFC3339, msg.TS)
	assert.NoError(t, err)
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub, _ := startHub(t)
	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)

	slow := &Client{hub: hub, send: make(chan []byte)}
	hub.register <- slow
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), "mqtt_data", "x"))
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, open := <-slow.send
	assert.False(t, open)
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub, _ := startHub(t)
	assert.NoError(t, hub.Publish(context.Background(), "connection_log", struct{}{}))
}

func TestHub_PublishQueueFull(t *testing.T) {
	hub := NewHub(logger.NopLogger())
	for i := 0; i < cap(hub.broadcast); i++ {
		require.NoError(t, hub.Publish(context.Background(), "c", i))
	}
	err := hub.Publish(context.Background(), "c", "overflow")
	require.Error(t, err)
	assert.True(t, apperrors.IsBroadcast(err))
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, cancel := startHub(t)
	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	assert.Eventually(t, func() bool {
		return hub.Publish(context.Background(), "c", 1) != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Unserializable(t *testing.T) {
	hub := NewHub(logger.NopLogger())
	err := hub.Publish(context.Background(), "c", make(chan int))
	assert.True(t, apperrors.IsBroadcast(err))
}
