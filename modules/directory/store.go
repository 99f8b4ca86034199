package directory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/example/group-chat-demo/domain/chat"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNotPermitted is returned when a user is not a member of the
	// group owning the requested channel.
	ErrNotPermitted = errors.New("user is not a member of the channel's group")
)

// Store provides access to the durable group/channel/message data.
// The relay core never writes application data directly; everything
// durable goes through here.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store over an open database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Group{},
		&domain.GroupMember{},
		&domain.Channel{},
		&domain.Message{},
		&domain.ChannelActivity{},
	)
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	var user domain.User
	if err := s.db.First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// GetUser returns a user by id.
func (s *Store) GetUser(id string) (*domain.User, error) {
	var user domain.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// CreateUser saves a new user.
func (s *Store) CreateUser(user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := s.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// ListGroups returns all groups.
func (s *Store) ListGroups() ([]domain.Group, error) {
	var groups []domain.Group
	if err := s.db.Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// CreateGroup saves a new group and enrolls its admin as a member.
func (s *Store) CreateGroup(name, adminID string) (*domain.Group, error) {
	group := &domain.Group{
		ID:        uuid.New().String(),
		Name:      name,
		AdminID:   adminID,
		CreatedAt: time.Now(),
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		return tx.Create(&domain.GroupMember{GroupID: group.ID, UserID: adminID}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return group, nil
}

// AddMember enrolls a user in a group. Re-enrolling is a no-op.
func (s *Store) AddMember(groupID, userID string) error {
	member := domain.GroupMember{GroupID: groupID, UserID: userID}
	err := s.db.Where(&member).FirstOrCreate(&member).Error
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// IsMember reports whether a user belongs to a group.
func (s *Store) IsMember(groupID, userID string) (bool, error) {
	var count int64
	err := s.db.Model(&domain.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// ListChannels returns the channels of a group.
func (s *Store) ListChannels(groupID string) ([]domain.Channel, error) {
	var channels []domain.Channel
	if err := s.db.Find(&channels, "group_id = ?", groupID).Error; err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

// GetChannel returns a channel by id.
func (s *Store) GetChannel(channelID string) (*domain.Channel, error) {
	var channel domain.Channel
	if err := s.db.First(&channel, "id = ?", channelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find channel: %w", err)
	}
	return &channel, nil
}

// CreateChannel saves a new channel in a group.
func (s *Store) CreateChannel(groupID, name string) (*domain.Channel, error) {
	channel := &domain.Channel{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(channel).Error; err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	return channel, nil
}

// DeleteChannel removes a channel and its messages.
func (s *Store) DeleteChannel(channelID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.Message{}, "channel_id = ?", channelID).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		result := tx.Delete(&domain.Channel{}, "id = ?", channelID)
		if result.Error != nil {
			return fmt.Errorf("failed to delete channel: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CanJoin reports whether a user may join a channel: the channel must
// exist and the user must belong to the group that owns it.
func (s *Store) CanJoin(userID, channelID string) error {
	channel, err := s.GetChannel(channelID)
	if err != nil {
		return err
	}
	member, err := s.IsMember(channel.GroupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotPermitted
	}
	return nil
}

// SaveMessage assigns the message a durable identity and persists it.
// Called before the relay fans the message out.
func (s *Store) SaveMessage(msg *domain.Message) (*domain.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if err := s.db.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return msg, nil
}

// History returns the most recent messages of a channel in
// chronological order.
func (s *Store) History(channelID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var messages []domain.Message
	err := s.db.Where("channel_id = ?", channelID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// RecordActivity bumps the per-channel counters from relay events.
func (s *Store) RecordActivity(channelID string, messages, joins, leaves int64, at time.Time) error {
	activity := domain.ChannelActivity{ChannelID: channelID}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.ChannelActivity{ChannelID: channelID}).
			FirstOrCreate(&activity).Error; err != nil {
			return err
		}
		activity.MessageCount += messages
		activity.JoinCount += joins
		activity.LeaveCount += leaves
		activity.LastActivity = at
		return tx.Save(&activity).Error
	})
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// Activity returns the counters for a channel; zero counters when the
// channel has seen no traffic.
func (s *Store) Activity(channelID string) (*domain.ChannelActivity, error) {
	var activity domain.ChannelActivity
	err := s.db.First(&activity, "channel_id = ?", channelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.ChannelActivity{ChannelID: channelID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	return &activity, nil
}
