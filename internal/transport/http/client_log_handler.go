package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"vegcli/internal/errors"
	api "vegcli/pkg/contracts/api/v1"
)

// ClientLogHandler handles dashboard-side logging requests
type ClientLogHandler struct {
	logger *slog.Logger
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(logger *slog.Logger) *ClientLogHandler {
	return &ClientLogHandler{
		logger: logger.With(slog.String("handler", "client_log")),
	}
}

// Handle processes client logging requests
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var entry api.ClientLogEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		errors.WriteError(w, errors.NewValidationError("Invalid request format"))
		return
	}

	if entry.Message == "" {
		errors.WriteError(w, errors.NewValidationError("Message is required"))
		return
	}

	// Validate log level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[entry.Level] {
		entry.Level = "info"
	}

	// Log with client context
	attrs := []slog.Attr{
		slog.String("client_component", entry.Component),
		slog.String("timestamp", time.Now().Format(time.RFC3339)),
	}

	if entry.Timestamp != "" {
		attrs = append(attrs, slog.String("client_timestamp", entry.Timestamp))
	}

	if entry.Context != nil {
		attrs = append(attrs, slog.Any("context", entry.Context))
	}

	var level slog.Level
	switch entry.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	h.logger.LogAttrs(r.Context(), level, entry.Message, attrs...)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}
