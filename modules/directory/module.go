package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/group-chat-demo/events"
)

// Module exposes the persistent store as request-reply services and
// keeps channel activity counters up to date from relay events.
type Module struct {
	db     *gorm.DB
	store  *Store
	dbPath string
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the directory module.
func NewModule() *Module {
	dbPath := os.Getenv("CHAT_DB_PATH")
	if dbPath == "" {
		dbPath = "group_chat.db"
	}
	return &Module{dbPath: dbPath}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "directory"
}

// Start opens the database, migrates the schema and seeds demo data.
func (m *Module) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db
	m.store = NewStore(db)

	if err := m.store.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := Seed(m.store); err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}

	log.Printf("[directory] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop closes the database.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[directory] Module stopped")
	return nil
}

// Health pings the database.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get database connection: %v", err)}
	}
	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"database": m.dbPath},
	}
}

// Store returns the underlying store.
func (m *Module) Store() *Store {
	return m.store
}

// RegisterServices registers request-reply services in the service
// container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	type registration struct {
		name     string
		register func() error
	}

	registrations := []registration{
		{ServiceGetUser, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceGetUser,
				json.Unmarshal, json.Marshal, m.handleGetUser)
		}},
		{ServiceCanJoin, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceCanJoin,
				json.Unmarshal, json.Marshal, m.handleCanJoin)
		}},
		{ServiceSaveMessage, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceSaveMessage,
				json.Unmarshal, json.Marshal, m.handleSaveMessage)
		}},
		{ServiceGetHistory, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceGetHistory,
				json.Unmarshal, json.Marshal, m.handleGetHistory)
		}},
		{ServiceListGroups, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceListGroups,
				json.Unmarshal, json.Marshal, m.handleListGroups)
		}},
		{ServiceCreateGroup, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceCreateGroup,
				json.Unmarshal, json.Marshal, m.handleCreateGroup)
		}},
		{ServiceListChannels, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceListChannels,
				json.Unmarshal, json.Marshal, m.handleListChannels)
		}},
		{ServiceCreateChannel, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceCreateChannel,
				json.Unmarshal, json.Marshal, m.handleCreateChannel)
		}},
		{ServiceDeleteChannel, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceDeleteChannel,
				json.Unmarshal, json.Marshal, m.handleDeleteChannel)
		}},
	}

	for _, r := range registrations {
		if err := r.register(); err != nil {
			return fmt.Errorf("failed to register %s service: %w", r.name, err)
		}
	}

	log.Printf("[directory] Registered %d services", len(registrations))
	return nil
}

// RegisterEventConsumers subscribes to relay events to maintain
// channel activity counters.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserJoinedV1, m.handleUserJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserLeftV1, m.handleUserLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}

	log.Println("[directory] Registered event consumers: MessageSent, UserJoined, UserLeft")
	return nil
}

// Service handlers

func (m *Module) handleGetUser(_ context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	user, err := m.store.GetUserByUsername(req.Username)
	if err != nil {
		return GetUserResponse{}, err
	}
	return GetUserResponse{User: &UserRecord{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		Roles:        user.Roles,
		Avatar:       user.Avatar,
	}}, nil
}

func (m *Module) handleCanJoin(_ context.Context, req CanJoinRequest, _ *mono.Msg) (CanJoinResponse, error) {
	err := m.store.CanJoin(req.UserID, req.ChannelID)
	switch {
	case err == nil:
		return CanJoinResponse{Allowed: true}, nil
	case errors.Is(err, ErrNotFound):
		return CanJoinResponse{Allowed: false, Reason: "channel not found"}, nil
	case errors.Is(err, ErrNotPermitted):
		return CanJoinResponse{Allowed: false, Reason: "not a member of the channel's group"}, nil
	default:
		return CanJoinResponse{}, err
	}
}

func (m *Module) handleSaveMessage(_ context.Context, req SaveMessageRequest, _ *mono.Msg) (SaveMessageResponse, error) {
	saved, err := m.store.SaveMessage(&req.Message)
	if err != nil {
		return SaveMessageResponse{}, err
	}
	return SaveMessageResponse{Message: *saved}, nil
}

func (m *Module) handleGetHistory(_ context.Context, req GetHistoryRequest, _ *mono.Msg) (GetHistoryResponse, error) {
	messages, err := m.store.History(req.ChannelID, req.Limit)
	if err != nil {
		return GetHistoryResponse{}, err
	}
	return GetHistoryResponse{Messages: messages}, nil
}

func (m *Module) handleListGroups(_ context.Context, _ ListGroupsRequest, _ *mono.Msg) (ListGroupsResponse, error) {
	groups, err := m.store.ListGroups()
	if err != nil {
		return ListGroupsResponse{}, err
	}
	return ListGroupsResponse{Groups: groups}, nil
}

func (m *Module) handleCreateGroup(_ context.Context, req CreateGroupRequest, _ *mono.Msg) (CreateGroupResponse, error) {
	group, err := m.store.CreateGroup(req.Name, req.AdminID)
	if err != nil {
		return CreateGroupResponse{}, err
	}
	return CreateGroupResponse{Group: group}, nil
}

func (m *Module) handleListChannels(_ context.Context, req ListChannelsRequest, _ *mono.Msg) (ListChannelsResponse, error) {
	channels, err := m.store.ListChannels(req.GroupID)
	if err != nil {
		return ListChannelsResponse{}, err
	}
	return ListChannelsResponse{Channels: channels}, nil
}

func (m *Module) handleCreateChannel(_ context.Context, req CreateChannelRequest, _ *mono.Msg) (CreateChannelResponse, error) {
	channel, err := m.store.CreateChannel(req.GroupID, req.Name)
	if err != nil {
		return CreateChannelResponse{}, err
	}
	return CreateChannelResponse{Channel: channel}, nil
}

func (m *Module) handleDeleteChannel(_ context.Context, req DeleteChannelRequest, _ *mono.Msg) (DeleteChannelResponse, error) {
	if err := m.store.DeleteChannel(req.ChannelID); err != nil {
		return DeleteChannelResponse{}, err
	}
	return DeleteChannelResponse{Success: true}, nil
}

// Event handlers

func (m *Module) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	if err := m.store.RecordActivity(event.Message.ChannelID, 1, 0, 0, event.Message.Timestamp); err != nil {
		log.Printf("[directory] Failed to record message activity: %v", err)
	}
	return nil
}

func (m *Module) handleUserJoined(_ context.Context, event events.UserJoinedEvent, _ *mono.Msg) error {
	if err := m.store.RecordActivity(event.ChannelID, 0, 1, 0, event.Timestamp); err != nil {
		log.Printf("[directory] Failed to record join activity: %v", err)
	}
	return nil
}

func (m *Module) handleUserLeft(_ context.Context, event events.UserLeftEvent, _ *mono.Msg) error {
	if err := m.store.RecordActivity(event.ChannelID, 0, 0, 1, event.Timestamp); err != nil {
		log.Printf("[directory] Failed to record leave activity: %v", err)
	}
	return nil
}
