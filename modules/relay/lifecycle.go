package relay

import (
	"errors"
	"log/slog"

	"github.com/example/group-chat-demo/modules/hub"
)

// Lifecycle handles connection setup and teardown ordering: register
// on connect, and on disconnect remove the connection from every room
// it occupied (announcing each departure) before the signaling
// cleanup.
type Lifecycle struct {
	hub       *hub.Hub
	relay     *Relay
	signaling *Signaling
}

// NewLifecycle creates a lifecycle manager.
func NewLifecycle(h *hub.Hub, r *Relay, s *Signaling) *Lifecycle {
	return &Lifecycle{hub: h, relay: r, signaling: s}
}

// OnConnect registers a new connection. The connection joins no rooms;
// joins are explicit client actions. A duplicate id is logged and the
// stale entry evicted.
func (l *Lifecycle) OnConnect(connID, userID, username string) *hub.Client {
	c := hub.NewClient(connID, userID, username)
	if err := l.hub.Register(c); err != nil {
		if errors.Is(err, hub.ErrDuplicateConnection) {
			slog.Warn("Replaced duplicate connection", "connID", connID)
		}
	}
	return c
}

// OnDisconnect removes the connection from the registry and from every
// room it occupied, announcing one departure per room to the remaining
// occupants, then broadcasts a signaling leave regardless of whether
// the connection was ever in a call. Idempotent for unknown ids.
func (l *Lifecycle) OnDisconnect(connID string) {
	c, rooms := l.hub.Unregister(connID)
	if c == nil {
		return
	}

	for _, channelID := range rooms {
		l.relay.announceLeft(channelID, c)
	}
	l.signaling.HandleLeave(connID)

	slog.Info("Connection closed", "connID", connID, "rooms", len(rooms))
}
