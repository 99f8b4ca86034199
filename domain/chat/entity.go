package chat

import (
	"strings"
	"time"
)

// Roles recognised by the authorization layer.
const (
	RoleUser       = "user"
	RoleGroupAdmin = "group-admin"
	RoleSuperAdmin = "super-admin"
)

// User is a registered account. PasswordHash is never serialized.
type User struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"column:password_hash" json:"-"`
	Roles        string    `json:"roles"` // comma-separated role names
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasRole reports whether the user holds a role.
func (u *User) HasRole(role string) bool {
	for _, r := range strings.Split(u.Roles, ",") {
		if strings.TrimSpace(r) == role {
			return true
		}
	}
	return false
}

// Group is a tenant: a named collection of channels and members.
type Group struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	AdminID   string    `json:"admin_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupMember links a user to a group.
type GroupMember struct {
	GroupID string `gorm:"primaryKey" json:"group_id"`
	UserID  string `gorm:"primaryKey" json:"user_id"`
}

// Channel is a persisted chat channel inside a group. Its ID doubles
// as the room id for the real-time relay.
type Channel struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	GroupID   string    `gorm:"index" json:"group_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a durable chat message. Content may be empty when an
// image attachment is present.
type Message struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	ChannelID string    `gorm:"index" json:"channel_id"`
	UserID    string    `json:"user_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Image     string    `json:"image,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChannelActivity is a per-channel counter row maintained from relay
// events, not written on the request path.
type ChannelActivity struct {
	ChannelID    string    `gorm:"primaryKey" json:"channel_id"`
	MessageCount int64     `json:"message_count"`
	JoinCount    int64     `json:"join_count"`
	LeaveCount   int64     `json:"leave_count"`
	LastActivity time.Time `json:"last_activity"`
}
