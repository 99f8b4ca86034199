package relay

import (
	"context"
	"log"

	"github.com/go-monolith/mono"

	"github.com/example/group-chat-demo/events"
	"github.com/example/group-chat-demo/modules/hub"
)

// Module bundles the message relay, the signaling relay and the
// connection lifecycle manager, and declares the events they emit.
type Module struct {
	relay     *Relay
	signaling *Signaling
	lifecycle *Lifecycle
}

// Compile-time interface checks.
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventBusAwareModule = (*Module)(nil)
	_ mono.EventEmitterModule  = (*Module)(nil)
)

// NewModule creates the relay module over the shared hub.
func NewModule(h *hub.Hub) *Module {
	r := NewRelay(h)
	s := NewSignaling(h)
	return &Module{
		relay:     r,
		signaling: s,
		lifecycle: NewLifecycle(h, r, s),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.relay.SetEventBus(bus)
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
	}
}

// Start logs readiness; the relay has no background work.
func (m *Module) Start(_ context.Context) error {
	log.Println("[relay] Module started")
	return nil
}

// Stop logs shutdown.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[relay] Module stopped")
	return nil
}

// Relay returns the chat message relay.
func (m *Module) Relay() *Relay {
	return m.relay
}

// Signaling returns the call signaling relay.
func (m *Module) Signaling() *Signaling {
	return m.signaling
}

// Lifecycle returns the connection lifecycle manager.
func (m *Module) Lifecycle() *Lifecycle {
	return m.lifecycle
}
