package websocket

// OperationHubAdapter adapts the Hub to the operations.WebSocketHub
// interface so the run manager can broadcast without importing this package.
type OperationHubAdapter struct {
	hub *Hub
}

// NewOperationHubAdapter creates a new adapter for run manager integration
func NewOperationHubAdapter(hub *Hub) *OperationHubAdapter {
	return &OperationHubAdapter{hub: hub}
}

// BroadcastUpdate implements the operations.WebSocketHub interface.
// Maps (eventType, step, status, metadata) onto the hub's
// (updateType, subtype, action, data) broadcast.
func (p *OperationHubAdapter) BroadcastUpdate(eventType, step, status string, metadata interface{}) {
	p.hub.BroadcastUpdate(eventType, step, status, metadata)
}
