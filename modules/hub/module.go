package hub

import (
	"context"
	"log"

	"github.com/go-monolith/mono"
)

// Module wraps the Hub for the mono framework so the rest of the
// application can health-check the real-time state.
type Module struct {
	hub *Hub
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the hub module.
func NewModule() *Module {
	return &Module{hub: New()}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "hub"
}

// Start is a no-op: the hub has no background loop, all operations run
// on caller goroutines.
func (m *Module) Start(_ context.Context) error {
	log.Println("[hub] Module started")
	return nil
}

// Stop disconnects all clients.
func (m *Module) Stop(_ context.Context) error {
	n := m.hub.ClientCount()
	m.hub.CloseAll()
	log.Printf("[hub] Module stopped - %d clients disconnected", n)
	return nil
}

// Health reports connection and room counts.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections": m.hub.ClientCount(),
			"rooms":       m.hub.RoomCount(),
		},
	}
}

// Hub returns the underlying hub for the relay and gateway modules.
func (m *Module) Hub() *Hub {
	return m.hub
}
