package directory

import (
	domain "github.com/example/group-chat-demo/domain/chat"
)

// Service names registered in the service container.
const (
	ServiceGetUser       = "get-user"
	ServiceCanJoin       = "can-join"
	ServiceSaveMessage   = "save-message"
	ServiceGetHistory    = "get-history"
	ServiceListGroups    = "list-groups"
	ServiceCreateGroup   = "create-group"
	ServiceListChannels  = "list-channels"
	ServiceCreateChannel = "create-channel"
	ServiceDeleteChannel = "delete-channel"
)

// GetUserRequest looks a user up by username.
type GetUserRequest struct {
	Username string `json:"username"`
}

// UserRecord is the wire form of a user on the internal get-user
// service. domain.User tags its password hash `json:"-"`, which would
// strip it from the serialized reply; the auth module needs the hash
// for its credential check, so this type carries it explicitly. The
// service is in-process only and never exposed through the gateway.
type UserRecord struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Roles        string `json:"roles"`
	Avatar       string `json:"avatar,omitempty"`
}

// GetUserResponse carries the user record for the auth module's
// credential check.
type GetUserResponse struct {
	User *UserRecord `json:"user"`
}

// CanJoinRequest asks whether a user may join a channel.
type CanJoinRequest struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

// CanJoinResponse reports the permission decision.
type CanJoinResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// SaveMessageRequest persists a chat message.
type SaveMessageRequest struct {
	Message domain.Message `json:"message"`
}

// SaveMessageResponse returns the canonical persisted record.
type SaveMessageResponse struct {
	Message domain.Message `json:"message"`
}

// GetHistoryRequest fetches recent channel messages.
type GetHistoryRequest struct {
	ChannelID string `json:"channel_id"`
	Limit     int    `json:"limit"`
}

// GetHistoryResponse carries history in chronological order.
type GetHistoryResponse struct {
	Messages []domain.Message `json:"messages"`
}

// ListGroupsRequest lists all groups.
type ListGroupsRequest struct{}

// ListGroupsResponse carries all groups.
type ListGroupsResponse struct {
	Groups []domain.Group `json:"groups"`
}

// CreateGroupRequest creates a group owned by AdminID.
type CreateGroupRequest struct {
	Name    string `json:"name"`
	AdminID string `json:"admin_id"`
}

// CreateGroupResponse carries the created group.
type CreateGroupResponse struct {
	Group *domain.Group `json:"group"`
}

// ListChannelsRequest lists a group's channels.
type ListChannelsRequest struct {
	GroupID string `json:"group_id"`
}

// ListChannelsResponse carries a group's channels.
type ListChannelsResponse struct {
	Channels []domain.Channel `json:"channels"`
}

// CreateChannelRequest creates a channel in a group.
type CreateChannelRequest struct {
	GroupID string `json:"group_id"`
	Name    string `json:"name"`
}

// CreateChannelResponse carries the created channel.
type CreateChannelResponse struct {
	Channel *domain.Channel `json:"channel"`
}

// DeleteChannelRequest removes a channel and its messages.
type DeleteChannelRequest struct {
	ChannelID string `json:"channel_id"`
}

// DeleteChannelResponse reports the deletion outcome.
type DeleteChannelResponse struct {
	Success bool `json:"success"`
}
