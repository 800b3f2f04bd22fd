package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vegcli/internal/operations"
	"vegcli/internal/operations/testutil"
)

// collectSnapshots drains the client's send buffer until a snapshot with the
// wanted status arrives or the deadline passes, returning every status seen.
func collectSnapshots(t *testing.T, client *Client, wantStatus string, timeout time.Duration) (statuses []string, final map[string]interface{}) {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case raw, ok := <-client.send:
			require.True(t, ok, "send channel closed while waiting for snapshots")

			var msg map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &msg))
			if msg["type"] != operations.EventTypeOperationSnapshot {
				continue
			}

			data := msg["data"].(map[string]interface{})
			status := data["status"].(string)
			statuses = append(statuses, status)
			if status == wantStatus {
				return statuses, data
			}
		case <-deadline:
			t.Fatalf("no snapshot with status %q arrived; saw %v", wantStatus, statuses)
			return nil, nil
		}
	}
}

// TestRunSnapshotsReachWebSocketClients runs a two-step pipeline through the
// run manager and asserts the snapshot stream a dashboard client would see.
func TestRunSnapshotsReachWebSocketClients(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	time.Sleep(50 * time.Millisecond)
	readClientMessage(t, client, time.Second)

	adapter := NewOperationHubAdapter(hub)
	manager := operations.NewManager(adapter, operations.NewRegistry(), testutil.CreateTestConfig(), testLogger())
	require.NoError(t, manager.RegisterStep(testutil.CreateSuccessfulStep("alpha", "Alpha")))
	require.NoError(t, manager.RegisterStep(testutil.CreateSuccessfulStep("beta", "Beta", "alpha")))

	resp, err := manager.Execute(context.Background(), "ws-run", testutil.CreateTestSpec())
	require.NoError(t, err)
	require.Equal(t, operations.OperationStatusCompleted, resp.Status)

	statuses, final := collectSnapshots(t, client, "completed", 2*time.Second)

	// The run passes through running before completing.
	assert.Contains(t, statuses, "running")
	assert.Equal(t, "completed", statuses[len(statuses)-1])

	assert.Equal(t, "ws-run", final["operation_id"])
	assert.Equal(t, float64(100), final["progress"])
	assert.NotEmpty(t, final["completed_at"])

	steps := final["steps"].([]interface{})
	require.Len(t, steps, 2)
	for _, raw := range steps {
		step := raw.(map[string]interface{})
		assert.Equal(t, "completed", step["status"])
		assert.Equal(t, float64(100), step["progress"])
	}
}

// TestRunFailureSnapshotReachesClients verifies a failing step surfaces a
// failed snapshot with the step error attached.
func TestRunFailureSnapshotReachesClients(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	time.Sleep(50 * time.Millisecond)
	readClientMessage(t, client, time.Second)

	adapter := NewOperationHubAdapter(hub)
	manager := operations.NewManager(adapter, operations.NewRegistry(), testutil.CreateTestConfig(), testLogger())
	require.NoError(t, manager.RegisterStep(testutil.CreateFailingStep("alpha", "Alpha", nil)))

	resp, err := manager.Execute(context.Background(), "ws-fail", testutil.CreateTestSpec())
	require.Error(t, err)
	require.Equal(t, operations.OperationStatusFailed, resp.Status)

	statuses, final := collectSnapshots(t, client, "failed", 2*time.Second)

	assert.Equal(t, "failed", statuses[len(statuses)-1])
	assert.Equal(t, "ws-fail", final["operation_id"])

	steps := final["steps"].([]interface{})
	require.NotEmpty(t, steps)
	step := steps[0].(map[string]interface{})
	assert.Equal(t, "failed", step["status"])
	assert.NotEmpty(t, step["error"])
}
