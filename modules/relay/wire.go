package relay

import (
	"encoding/json"
	"log/slog"
	"time"

	domain "github.com/example/group-chat-demo/domain/chat"
)

// Frame types delivered to clients.
const (
	FrameMessageReceived = "messageReceived"
	FrameUserJoined      = "userJoined"
	FrameUserLeft        = "userLeft"
	FrameOffer           = "offer"
	FrameAnswer          = "answer"
	FrameCandidate       = "ice-candidate"
	FrameLeave           = "leave"
)

// SystemSender is the sender name on synthesized presence messages.
const SystemSender = "System"

// Frame is the outbound WebSocket envelope. Signaling fields carry
// opaque payloads the relay never interprets.
type Frame struct {
	Type        string          `json:"type"`
	ChannelID   string          `json:"channel_id,omitempty"`
	Sender      string          `json:"sender,omitempty"`
	Username    string          `json:"username,omitempty"`
	Content     string          `json:"content,omitempty"`
	Message     *domain.Message `json:"message,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
	Timestamp   time.Time       `json:"timestamp,omitempty"`
}

func marshalFrame(f Frame) []byte {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("Failed to marshal frame", "type", f.Type, "error", err)
		return nil
	}
	return data
}
