package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewOperationHubAdapter tests adapter construction
func TestNewOperationHubAdapter(t *testing.T) {
	hub := NewHub(testLogger())
	adapter := NewOperationHubAdapter(hub)

	require.NotNil(t, adapter)
	assert.Same(t, hub, adapter.hub)
}

// TestOperationHubAdapterForwardsSnapshots tests that run snapshots pushed
// through the adapter reach connected clients unchanged.
func TestOperationHubAdapterForwardsSnapshots(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	time.Sleep(50 * time.Millisecond)
	readClientMessage(t, client, time.Second)

	adapter := NewOperationHubAdapter(hub)
	adapter.BroadcastUpdate("operation:snapshot", "run-7", "update", map[string]interface{}{
		"operation_id": "run-7",
		"status":       "running",
		"progress":     40,
	})

	msg := readClientMessage(t, client, time.Second)
	assert.Equal(t, "operation:snapshot", msg["type"])
	assert.NotContains(t, msg, "subtype")
	assert.NotContains(t, msg, "action")

	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "run-7", data["operation_id"])
	assert.Equal(t, "running", data["status"])
	assert.Equal(t, float64(40), data["progress"])
}
