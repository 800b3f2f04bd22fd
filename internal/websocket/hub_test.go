package websocket

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(hub *Hub, buffer int) *Client {
	return &Client{
		id:          "test-client",
		hub:         hub,
		send:        make(chan []byte, buffer),
		connectedAt: time.Now(),
		remoteAddr:  "127.0.0.1:9999",
	}
}

func readClientMessage(t *testing.T, client *Client, timeout time.Duration) map[string]interface{} {
	t.Helper()

	select {
	case raw, ok := <-client.send:
		require.True(t, ok, "send channel closed before message arrived")
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(timeout):
		t.Fatal("timed out waiting for client message")
		return nil
	}
}

// TestNewHub tests hub creation
func TestNewHub(t *testing.T) {
	hub := NewHub(testLogger())

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.NotNil(t, hub.logger)
	assert.NotNil(t, hub.quit)
	assert.NotNil(t, hub.metricsQuit)
	assert.Equal(t, 0, len(hub.clients))
	assert.False(t, hub.running)
}

// TestHubStartStop tests starting and stopping the hub
func TestHubStartStop(t *testing.T) {
	hub := NewHub(testLogger())

	hub.Start()
	assert.True(t, hub.running)

	// Starting again should be idempotent
	hub.Start()
	assert.True(t, hub.running)

	time.Sleep(10 * time.Millisecond)

	hub.Stop()
	assert.False(t, hub.running)

	// Stopping again should be idempotent
	hub.Stop()
	assert.False(t, hub.running)
}

// TestHubClientRegistration tests client registration and unregistration
func TestHubClientRegistration(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())

	// The hub greets new clients with a connection message.
	msg := readClientMessage(t, client, time.Second)
	assert.Equal(t, TypeConnection, msg["type"])
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, "Connected to VegPulse", data["message"])

	hub.unregister <- client
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())

	// The send channel is closed on unregister.
	_, ok := <-client.send
	assert.False(t, ok)
}

// TestHubBroadcastDelivery tests that broadcasts reach every client
func TestHubBroadcastDelivery(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	first := newTestClient(hub, 256)
	second := newTestClient(hub, 256)
	hub.Register(first)
	hub.Register(second)
	time.Sleep(50 * time.Millisecond)

	// Drain the connection greetings.
	readClientMessage(t, first, time.Second)
	readClientMessage(t, second, time.Second)

	hub.BroadcastOutput("run started", LevelInfo)

	for _, client := range []*Client{first, second} {
		msg := readClientMessage(t, client, time.Second)
		assert.Equal(t, TypeOutput, msg["type"])
		data := msg["data"].(map[string]interface{})
		assert.Equal(t, "run started", data["message"])
		assert.Equal(t, LevelInfo, data["level"])
	}
}

// TestHubBroadcastUpdateSnapshot verifies the snapshot envelope carries
// no legacy subtype or action fields.
func TestHubBroadcastUpdateSnapshot(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	time.Sleep(50 * time.Millisecond)
	readClientMessage(t, client, time.Second)

	hub.BroadcastUpdate("operation:snapshot", "run-1", "update", map[string]interface{}{
		"operation_id": "run-1",
		"status":       "running",
	})

	msg := readClientMessage(t, client, time.Second)
	assert.Equal(t, "operation:snapshot", msg["type"])
	assert.NotContains(t, msg, "subtype")
	assert.NotContains(t, msg, "action")
	assert.NotEmpty(t, msg["timestamp"])

	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "run-1", data["operation_id"])
	assert.Equal(t, "running", data["status"])
}

// TestHubBroadcastUpdateLegacyEnvelope verifies non-snapshot events keep
// their subtype and action fields for the dashboard.
func TestHubBroadcastUpdateLegacyEnvelope(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	time.Sleep(50 * time.Millisecond)
	readClientMessage(t, client, time.Second)

	hub.BroadcastRefresh("run-complete", []string{"results"})

	msg := readClientMessage(t, client, time.Second)
	assert.Equal(t, TypeDataUpdate, msg["type"])
	assert.Equal(t, SubtypeAll, msg["subtype"])
	assert.Equal(t, ActionRefresh, msg["action"])

	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "run-complete", data["source"])
}

// TestHubBroadcastError tests the structured error message shape
func TestHubBroadcastError(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	time.Sleep(50 * time.Millisecond)
	readClientMessage(t, client, time.Second)

	hub.BroadcastError("ERR_PANEL", "panel not found", "no csv in data dir", "load_panel", true)

	msg := readClientMessage(t, client, time.Second)
	assert.Equal(t, TypeError, msg["type"])
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "ERR_PANEL", data["code"])
	assert.Equal(t, "panel not found", data["message"])
	assert.Equal(t, "load_panel", data["step"])
	assert.Equal(t, true, data["recoverable"])
}

// TestHubSlowClientDisconnected tests that a client with a full send
// buffer is dropped instead of blocking the broadcast loop.
func TestHubSlowClientDisconnected(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	// Buffer of one: the connection greeting fills it.
	client := newTestClient(hub, 1)
	hub.Register(client)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, hub.ClientCount())

	hub.BroadcastOutput("this will not fit", LevelInfo)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, hub.ClientCount())
}

// TestHubBroadcastUnmarshalableData tests that marshal failures are
// swallowed without panicking or blocking.
func TestHubBroadcastUnmarshalableData(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	time.Sleep(50 * time.Millisecond)
	readClientMessage(t, client, time.Second)

	assert.NotPanics(t, func() {
		hub.BroadcastUpdate("custom", "", "", func() {})
	})

	// Nothing should arrive.
	select {
	case raw := <-client.send:
		t.Fatalf("unexpected message: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestHubStopClosesClients tests that stopping the hub closes all client
// send channels.
func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()

	client := newTestClient(hub, 256)
	hub.Register(client)
	time.Sleep(50 * time.Millisecond)
	readClientMessage(t, client, time.Second)

	hub.Stop()

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())
}

// TestHubGetHubMetrics tests the metrics snapshot map
func TestHubGetHubMetrics(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	time.Sleep(50 * time.Millisecond)

	hubMetrics := hub.GetHubMetrics()
	assert.Equal(t, 1, hubMetrics["active_clients"])
	assert.Equal(t, int64(1), hubMetrics["total_connections"])
	assert.Contains(t, hubMetrics, "messages_sent")
	assert.Contains(t, hubMetrics, "connection_errors")
}

// TestHubBroadcastViaServicesInterface tests the single-argument broadcast
// used by the service layer.
func TestHubBroadcastViaServicesInterface(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	time.Sleep(50 * time.Millisecond)
	readClientMessage(t, client, time.Second)

	hub.Broadcast(TypeLog, map[string]interface{}{"line": "estimating beta path"})

	msg := readClientMessage(t, client, time.Second)
	assert.Equal(t, TypeLog, msg["type"])
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "estimating beta path", data["line"])
}
