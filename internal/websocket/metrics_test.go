package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewMetrics tests metrics construction
func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	assert.NotNil(t, m)
	assert.NotNil(t, m.ErrorsByType)
	assert.False(t, m.LastReset.IsZero())
	assert.Equal(t, int64(0), m.TotalConnections)
}

// TestMetricsRecordConnection tests connection counters and the concurrency
// high-water mark.
func TestMetricsRecordConnection(t *testing.T) {
	m := NewMetrics()

	m.RecordConnection()
	m.RecordConnection()
	m.RecordConnection()
	m.RecordDisconnection(time.Second)

	assert.Equal(t, int64(3), m.TotalConnections)
	assert.Equal(t, int64(2), m.ActiveConnections)
	assert.Equal(t, int64(3), m.MaxConcurrent)
	assert.Equal(t, time.Second, m.AvgConnectionTime)
}

// TestMetricsAvgConnectionTime tests the rolling average of connection durations
func TestMetricsAvgConnectionTime(t *testing.T) {
	m := NewMetrics()

	m.RecordConnection()
	m.RecordConnection()
	m.RecordDisconnection(2 * time.Second)
	m.RecordDisconnection(4 * time.Second)

	assert.Equal(t, 3*time.Second, m.AvgConnectionTime)
}

// TestMetricsRecordMessage tests message counters in both directions
func TestMetricsRecordMessage(t *testing.T) {
	m := NewMetrics()

	m.RecordMessage("sent", 100, true)
	m.RecordMessage("sent", 200, true)
	m.RecordMessage("received", 60, true)
	m.RecordMessage("received", 40, false)

	assert.Equal(t, int64(2), m.MessagesSent)
	assert.Equal(t, int64(2), m.MessagesReceived)
	assert.Equal(t, int64(300), m.BytesSent)
	assert.Equal(t, int64(100), m.BytesReceived)
	assert.Equal(t, int64(1), m.MessageErrors)
	assert.Equal(t, int64(100), m.AvgMessageSize)
}

// TestMetricsRecordError tests per-type error counting
func TestMetricsRecordError(t *testing.T) {
	m := NewMetrics()

	m.RecordError("write_failed")
	m.RecordError("write_failed")
	m.RecordError("upgrade_failed")

	assert.Equal(t, int64(2), m.ErrorsByType["write_failed"])
	assert.Equal(t, int64(1), m.ErrorsByType["upgrade_failed"])
}

// TestMetricsRecordQueueDepth tests the max and moving-average queue depth
func TestMetricsRecordQueueDepth(t *testing.T) {
	m := NewMetrics()

	m.RecordQueueDepth(10)
	assert.Equal(t, int64(10), m.MaxQueueDepth)
	assert.Equal(t, int64(10), m.AvgQueueDepth)

	m.RecordQueueDepth(20)
	assert.Equal(t, int64(20), m.MaxQueueDepth)
	assert.Equal(t, int64(11), m.AvgQueueDepth)

	m.RecordQueueDepth(5)
	assert.Equal(t, int64(20), m.MaxQueueDepth)
}

// TestMetricsRecordDroppedMessage tests the dropped message counter
func TestMetricsRecordDroppedMessage(t *testing.T) {
	m := NewMetrics()

	m.RecordDroppedMessage()
	m.RecordDroppedMessage()

	assert.Equal(t, int64(2), m.DroppedMessages)
}

// TestMetricsGetSnapshot tests the nested snapshot map used by the health
// endpoint.
func TestMetricsGetSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordConnection()
	m.RecordMessage("sent", 128, true)
	m.RecordDroppedMessage()
	m.RecordError("upgrade_failed")
	m.RecordQueueDepth(7)

	snapshot := m.GetSnapshot()

	connections := snapshot["connections"].(map[string]interface{})
	assert.Equal(t, int64(1), connections["total"])
	assert.Equal(t, int64(1), connections["active"])
	assert.Equal(t, int64(1), connections["max_concurrent"])

	messages := snapshot["messages"].(map[string]interface{})
	assert.Equal(t, int64(1), messages["sent"])
	assert.Equal(t, int64(128), messages["bytes_sent"])
	assert.Equal(t, int64(1), messages["dropped"])

	performance := snapshot["performance"].(map[string]interface{})
	assert.Equal(t, int64(7), performance["max_queue_depth"])

	errorCounts := snapshot["errors"].(map[string]int64)
	assert.Equal(t, int64(1), errorCounts["upgrade_failed"])

	assert.GreaterOrEqual(t, snapshot["uptime_seconds"].(float64), 0.0)
}

// TestMetricsSnapshotIsolated tests that mutating the snapshot error map does
// not leak back into the collector.
func TestMetricsSnapshotIsolated(t *testing.T) {
	m := NewMetrics()
	m.RecordError("write_failed")

	snapshot := m.GetSnapshot()
	errorCounts := snapshot["errors"].(map[string]int64)
	errorCounts["write_failed"] = 99

	assert.Equal(t, int64(1), m.ErrorsByType["write_failed"])
}

// TestMetricsReset tests that reset zeroes every counter
func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordConnection()
	m.RecordMessage("sent", 512, true)
	m.RecordError("write_failed")
	m.RecordQueueDepth(42)
	m.RecordDroppedMessage()

	before := m.LastReset
	time.Sleep(5 * time.Millisecond)
	m.Reset()

	assert.Equal(t, int64(0), m.TotalConnections)
	assert.Equal(t, int64(0), m.ActiveConnections)
	assert.Equal(t, int64(0), m.MessagesSent)
	assert.Equal(t, int64(0), m.BytesSent)
	assert.Equal(t, int64(0), m.MaxQueueDepth)
	assert.Equal(t, int64(0), m.DroppedMessages)
	assert.Empty(t, m.ErrorsByType)
	assert.True(t, m.LastReset.After(before))
}

// TestGetMetricsGlobal tests that the package-level collector is a singleton
func TestGetMetricsGlobal(t *testing.T) {
	first := GetMetrics()
	second := GetMetrics()

	require.NotNil(t, first)
	assert.Same(t, first, second)
}

// TestMetricsConcurrentAccess exercises the collector from multiple goroutines
func TestMetricsConcurrentAccess(t *testing.T) {
	m := NewMetrics()
	done := make(chan struct{})

	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				m.RecordConnection()
				m.RecordMessage("sent", 10, true)
				m.RecordDisconnection(time.Millisecond)
				m.GetSnapshot()
			}
		}()
	}

	for i := 0; i < 8; i++ {
		<-done
	}

	assert.Equal(t, int64(800), m.TotalConnections)
	assert.Equal(t, int64(0), m.ActiveConnections)
	assert.Equal(t, int64(800), m.MessagesSent)
}
