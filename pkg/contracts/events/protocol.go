// Package events contains event contract definitions for WebSocket
// communication in the VegPulse event-study service.
package events

import (
	"encoding/json"
	"time"
)

// Protocol version
const (
	ProtocolVersion = "1.0"
	ProtocolName    = "vegpulse-websocket-protocol"
)

// Event types pushed over the progress socket.
const (
	TypeConnection        = "connection"
	TypeOperationStatus   = "operation:status"
	TypeOperationProgress = "operation:progress"
	TypeOperationComplete = "operation:complete"
	TypeOperationError    = "operation:error"
	TypeOperationSnapshot = "operation:snapshot"
	TypeOutput            = "output"
	TypeError             = "error"
	TypeDataUpdate        = "data_update"
	TypeLog               = "log"
)

// Message levels
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Frame is the wire envelope for every pushed event.
type Frame struct {
	Version   string          `json:"version"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	TraceID   string          `json:"trace_id,omitempty"`
}

// ProtocolError represents a protocol-level error
type ProtocolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// Protocol error codes
const (
	ErrCodeInvalidFrame    = "INVALID_FRAME"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeMessageTooLarge = "MESSAGE_TOO_LARGE"
	ErrCodeServerError     = "SERVER_ERROR"
)

// ProgressPayload is the payload of operation:progress events.
type ProgressPayload struct {
	OperationID string  `json:"operation_id"`
	StepID      string  `json:"step_id,omitempty"`
	Progress    float64 `json:"progress"` // 0-100
	Message     string  `json:"message,omitempty"`
}

// StatusPayload is the payload of operation:status events.
type StatusPayload struct {
	OperationID string `json:"operation_id"`
	StepID      string `json:"step_id,omitempty"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}
