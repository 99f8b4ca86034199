package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-monolith/mono"

	domain "github.com/example/group-chat-demo/domain/chat"
	"github.com/example/group-chat-demo/events"
	"github.com/example/group-chat-demo/modules/hub"
)

var (
	// ErrNotInRoom is returned when a message targets a channel the
	// sending connection has not joined. The message is not relayed.
	ErrNotInRoom = errors.New("sender is not in the channel")

	// ErrUnknownConnection is returned for operations on a connection
	// id the hub does not know.
	ErrUnknownConnection = errors.New("unknown connection")
)

// PresenceKind tags a synthesized presence announcement.
type PresenceKind string

const (
	PresenceJoined PresenceKind = "joined"
	PresenceLeft   PresenceKind = "left"
)

// Relay routes chat messages and presence announcements to channel
// rooms. Messages reach the relay only after the directory has
// persisted them, so every relayed message carries a durable id.
type Relay struct {
	hub *hub.Hub
	bus mono.EventBus
}

// NewRelay creates a relay over the given hub.
func NewRelay(h *hub.Hub) *Relay {
	return &Relay{hub: h}
}

// SetEventBus attaches the bus used for best-effort domain event
// publication. Without a bus the relay only broadcasts.
func (r *Relay) SetEventBus(bus mono.EventBus) {
	r.bus = bus
}

// HandleChatMessage fans a persisted message out to the other
// occupants of its channel. Returns ErrNotInRoom, without any
// broadcast, when the sending connection is not a member of
// msg.ChannelID.
func (r *Relay) HandleChatMessage(connID string, msg domain.Message) error {
	if !r.hub.InRoom(connID, msg.ChannelID) {
		return ErrNotInRoom
	}

	data := marshalFrame(Frame{
		Type:      FrameMessageReceived,
		ChannelID: msg.ChannelID,
		Message:   &msg,
	})
	if data == nil {
		return nil
	}
	r.hub.Broadcast(msg.ChannelID, data, connID)

	if r.bus != nil {
		if err := events.MessageSentV1.Publish(r.bus, events.MessageSentEvent{Message: msg}, nil); err != nil {
			slog.Warn("Failed to publish MessageSent event", "error", err)
		}
	}
	return nil
}

// JoinChannel adds a connection to a channel room and announces the
// arrival to the room's other occupants. Re-joining a channel the
// connection already occupies does nothing.
func (r *Relay) JoinChannel(connID, channelID string) error {
	c, ok := r.hub.Client(connID)
	if !ok {
		return ErrUnknownConnection
	}
	if !r.hub.Join(channelID, connID) {
		return nil
	}

	r.AnnouncePresence(channelID, PresenceJoined, c.Username, connID)

	if r.bus != nil {
		ev := events.UserJoinedEvent{
			ChannelID: channelID,
			UserID:    c.UserID,
			Username:  c.Username,
			Timestamp: time.Now(),
		}
		if err := events.UserJoinedV1.Publish(r.bus, ev, nil); err != nil {
			slog.Warn("Failed to publish UserJoined event", "error", err)
		}
	}
	return nil
}

// LeaveChannel removes a connection from a channel room and announces
// the departure to the remaining occupants. No-op when the connection
// is unknown or not a member.
func (r *Relay) LeaveChannel(connID, channelID string) {
	c, ok := r.hub.Client(connID)
	if !ok {
		return
	}
	if !r.hub.Leave(channelID, connID) {
		return
	}
	r.announceLeft(channelID, c)
}

func (r *Relay) announceLeft(channelID string, c *hub.Client) {
	r.AnnouncePresence(channelID, PresenceLeft, c.Username, c.ID)

	if r.bus != nil {
		ev := events.UserLeftEvent{
			ChannelID: channelID,
			UserID:    c.UserID,
			Username:  c.Username,
			Timestamp: time.Now(),
		}
		if err := events.UserLeftV1.Publish(r.bus, ev, nil); err != nil {
			slog.Warn("Failed to publish UserLeft event", "error", err)
		}
	}
}

// AnnouncePresence broadcasts a System-authored presence message to a
// channel's occupants, excluding the subject connection.
func (r *Relay) AnnouncePresence(channelID string, kind PresenceKind, displayName, excludeID string) {
	frameType := FrameUserJoined
	text := fmt.Sprintf("%s joined the channel", displayName)
	if kind == PresenceLeft {
		frameType = FrameUserLeft
		text = fmt.Sprintf("%s left the channel", displayName)
	}

	data := marshalFrame(Frame{
		Type:      frameType,
		ChannelID: channelID,
		Sender:    SystemSender,
		Username:  displayName,
		Content:   text,
		Timestamp: time.Now(),
	})
	if data == nil {
		return
	}
	r.hub.Broadcast(channelID, data, excludeID)
}
