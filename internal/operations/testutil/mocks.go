package testutil

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vegcli/internal/operations"
)

// MockStep is a configurable mock implementation of the Step interface.
type MockStep struct {
	IDValue           string
	NameValue         string
	DependenciesValue []string

	// Configurable functions
	ExecuteFunc  func(ctx context.Context, state *operations.OperationState) error
	ValidateFunc func(state *operations.OperationState) error

	// Call tracking
	mu            sync.Mutex
	ExecuteCalls  int
	ExecuteArgs   []ExecuteCall
	ValidateCalls int
	ValidateArgs  []ValidateCall
}

// ExecuteCall tracks arguments passed to Execute.
type ExecuteCall struct {
	Ctx   context.Context
	State *operations.OperationState
	Time  time.Time
}

// ValidateCall tracks arguments passed to Validate.
type ValidateCall struct {
	State *operations.OperationState
	Time  time.Time
}

// ID returns the step ID.
func (m *MockStep) ID() string {
	return m.IDValue
}

// Name returns the step name.
func (m *MockStep) Name() string {
	return m.NameValue
}

// Dependencies returns the step dependencies.
func (m *MockStep) Dependencies() []string {
	if m.DependenciesValue == nil {
		return []string{}
	}
	return m.DependenciesValue
}

// Execute runs the mock execute function.
func (m *MockStep) Execute(ctx context.Context, state *operations.OperationState) error {
	m.mu.Lock()
	m.ExecuteCalls++
	m.ExecuteArgs = append(m.ExecuteArgs, ExecuteCall{
		Ctx:   ctx,
		State: state,
		Time:  time.Now(),
	})
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, state)
	}
	return nil
}

// Validate runs the mock validate function.
func (m *MockStep) Validate(state *operations.OperationState) error {
	m.mu.Lock()
	m.ValidateCalls++
	m.ValidateArgs = append(m.ValidateArgs, ValidateCall{
		State: state,
		Time:  time.Now(),
	})
	m.mu.Unlock()

	if m.ValidateFunc != nil {
		return m.ValidateFunc(state)
	}
	return nil
}

// GetExecuteCalls returns the number of Execute calls.
func (m *MockStep) GetExecuteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// GetValidateCalls returns the number of Validate calls.
func (m *MockStep) GetValidateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ValidateCalls
}

// FirstExecuteTime returns when the step first executed.
func (m *MockStep) FirstExecuteTime() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ExecuteArgs) == 0 {
		return time.Time{}, false
	}
	return m.ExecuteArgs[0].Time, true
}

// MockWebSocketHub captures WebSocket messages for testing.
type MockWebSocketHub struct {
	mu       sync.Mutex
	Messages []WebSocketMessage
}

// WebSocketMessage represents a captured WebSocket message.
type WebSocketMessage struct {
	EventType string
	Step      string
	Status    string
	Metadata  interface{}
	Time      time.Time
}

// BroadcastUpdate captures WebSocket messages.
func (m *MockWebSocketHub) BroadcastUpdate(eventType, step, status string, metadata interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Messages = append(m.Messages, WebSocketMessage{
		EventType: eventType,
		Step:      step,
		Status:    status,
		Metadata:  metadata,
		Time:      time.Now(),
	})
}

// GetMessages returns all captured messages.
func (m *MockWebSocketHub) GetMessages() []WebSocketMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages := make([]WebSocketMessage, len(m.Messages))
	copy(messages, m.Messages)
	return messages
}

// GetMessagesByType returns messages of a specific type.
func (m *MockWebSocketHub) GetMessagesByType(eventType string) []WebSocketMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var filtered []WebSocketMessage
	for _, msg := range m.Messages {
		if msg.EventType == eventType {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

// LastSnapshot returns the most recent snapshot broadcast for an operation.
func (m *MockWebSocketHub) LastSnapshot(operationID string) (*operations.OperationSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.Messages) - 1; i >= 0; i-- {
		msg := m.Messages[i]
		if msg.EventType != operations.EventTypeOperationSnapshot || msg.Step != operationID {
			continue
		}
		if snapshot, ok := msg.Metadata.(*operations.OperationSnapshot); ok {
			return snapshot, true
		}
	}
	return nil, false
}

// Clear removes all captured messages.
func (m *MockWebSocketHub) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = nil
}

// MockSlogHandler captures slog records for testing.
type MockSlogHandler struct {
	mu      sync.Mutex
	records []MockLogRecord
}

// MockLogRecord represents a captured slog record.
type MockLogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]interface{}
	Time    time.Time
}

// NewMockSlogHandler creates a new mock slog handler.
func NewMockSlogHandler() *MockSlogHandler {
	return &MockSlogHandler{
		records: make([]MockLogRecord, 0),
	}
}

// Handle implements slog.Handler.
func (h *MockSlogHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	attrs := make(map[string]interface{})
	record.Attrs(func(attr slog.Attr) bool {
		attrs[attr.Key] = attr.Value.Any()
		return true
	})

	h.records = append(h.records, MockLogRecord{
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
		Time:    record.Time,
	})

	return nil
}

// Enabled implements slog.Handler.
func (h *MockSlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler. The handler is shared so every record
// lands in the same capture buffer regardless of With chains.
func (h *MockSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

// WithGroup implements slog.Handler.
func (h *MockSlogHandler) WithGroup(name string) slog.Handler {
	return h
}

// GetRecords returns all captured log records.
func (h *MockSlogHandler) GetRecords() []MockLogRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	records := make([]MockLogRecord, len(h.records))
	copy(records, h.records)
	return records
}

// GetRecordsByLevel returns records filtered by level.
func (h *MockSlogHandler) GetRecordsByLevel(level slog.Level) []MockLogRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	var filtered []MockLogRecord
	for _, record := range h.records {
		if record.Level == level {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

// HasMessage checks if any record carries the given message.
func (h *MockSlogHandler) HasMessage(message string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, record := range h.records {
		if record.Message == message {
			return true
		}
	}
	return false
}

// HasAttr checks if any record carries the given attribute.
func (h *MockSlogHandler) HasAttr(key string, value interface{}) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, record := range h.records {
		if attrValue, exists := record.Attrs[key]; exists {
			if attrValue == value {
				return true
			}
		}
	}
	return false
}

// CountRecords returns the total number of captured records.
func (h *MockSlogHandler) CountRecords() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Clear removes all captured records.
func (h *MockSlogHandler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
}

// CreateTestSlogLogger creates a slog.Logger backed by a MockSlogHandler.
func CreateTestSlogLogger() (*slog.Logger, *MockSlogHandler) {
	handler := NewMockSlogHandler()
	logger := slog.New(handler)
	return logger, handler
}
