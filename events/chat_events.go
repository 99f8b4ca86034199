package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/group-chat-demo/domain/chat"
)

// MessageSentEvent is emitted after a chat message has been persisted
// and relayed to its channel.
type MessageSentEvent struct {
	Message domain.Message `json:"message"`
}

// UserJoinedEvent is emitted when a connection joins a channel room.
type UserJoinedEvent struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted when a connection leaves a channel room,
// explicitly or by disconnecting.
type UserLeftEvent struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the relay domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"relay",
		"MessageSent",
		"v1",
	)

	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"relay",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"relay",
		"UserLeft",
		"v1",
	)
)
