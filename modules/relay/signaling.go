package relay

import (
	"encoding/json"

	"github.com/example/group-chat-demo/modules/hub"
)

// Signaling relays WebRTC handshake payloads between peers. Payloads
// are opaque blobs: the relay never parses a session description or an
// ICE candidate, malformed ones are the receiving client's problem.
//
// Scope is global: every event goes to all other registered
// connections, not to a room or a call session. At most one concurrent
// call is therefore usable across the whole process; a second call
// would cross-talk with the first.
type Signaling struct {
	hub *hub.Hub
}

// NewSignaling creates a signaling relay over the given hub.
func NewSignaling(h *hub.Hub) *Signaling {
	return &Signaling{hub: h}
}

// HandleOffer broadcasts a call offer, with the caller's display name,
// to every other connection.
func (s *Signaling) HandleOffer(connID string, description json.RawMessage, displayName string) {
	s.broadcast(connID, Frame{
		Type:        FrameOffer,
		Description: description,
		Username:    displayName,
	})
}

// HandleAnswer broadcasts a call answer to every other connection.
func (s *Signaling) HandleAnswer(connID string, answer json.RawMessage) {
	s.broadcast(connID, Frame{
		Type:        FrameAnswer,
		Description: answer,
	})
}

// HandleCandidate broadcasts an ICE candidate to every other
// connection.
func (s *Signaling) HandleCandidate(connID string, candidate json.RawMessage) {
	s.broadcast(connID, Frame{
		Type:      FrameCandidate,
		Candidate: candidate,
	})
}

// HandleLeave tells every other connection to tear down its peer
// connection. Sent on explicit hang-up and unconditionally on
// disconnect.
func (s *Signaling) HandleLeave(connID string) {
	s.broadcast(connID, Frame{Type: FrameLeave})
}

func (s *Signaling) broadcast(connID string, f Frame) {
	data := marshalFrame(f)
	if data == nil {
		return
	}
	s.hub.BroadcastAll(data, connID)
}
