package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/group-chat-demo/domain/chat"
	"github.com/example/group-chat-demo/modules/auth"
	"github.com/example/group-chat-demo/modules/directory"
)

// DirectoryPort is the gateway's view of the persistent store.
type DirectoryPort interface {
	CanJoin(ctx context.Context, userID, channelID string) (bool, string, error)
	SaveMessage(ctx context.Context, msg domain.Message) (domain.Message, error)
	History(ctx context.Context, channelID string, limit int) ([]domain.Message, error)
	ListGroups(ctx context.Context) ([]domain.Group, error)
	CreateGroup(ctx context.Context, name, adminID string) (*domain.Group, error)
	ListChannels(ctx context.Context, groupID string) ([]domain.Channel, error)
	CreateChannel(ctx context.Context, groupID, name string) (*domain.Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
}

// AuthPort is the gateway's view of the auth collaborator.
type AuthPort interface {
	Login(ctx context.Context, username, password string) (*auth.LoginResponse, error)
	ValidateToken(ctx context.Context, token string) (*auth.ValidateTokenResponse, error)
}

// directoryAdapter implements DirectoryPort over the service
// container.
type directoryAdapter struct {
	container mono.ServiceContainer
}

// newDirectoryAdapter creates a DirectoryPort backed by the directory
// module's services.
func newDirectoryAdapter(container mono.ServiceContainer) DirectoryPort {
	if container == nil {
		panic("gateway: directory ServiceContainer is nil")
	}
	return &directoryAdapter{container: container}
}

func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s call failed: %w", service, err)
	}
	return nil
}

func (a *directoryAdapter) CanJoin(ctx context.Context, userID, channelID string) (bool, string, error) {
	req := directory.CanJoinRequest{UserID: userID, ChannelID: channelID}
	var resp directory.CanJoinResponse
	if err := call(ctx, a.container, directory.ServiceCanJoin, &req, &resp); err != nil {
		return false, "", err
	}
	return resp.Allowed, resp.Reason, nil
}

func (a *directoryAdapter) SaveMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	req := directory.SaveMessageRequest{Message: msg}
	var resp directory.SaveMessageResponse
	if err := call(ctx, a.container, directory.ServiceSaveMessage, &req, &resp); err != nil {
		return domain.Message{}, err
	}
	return resp.Message, nil
}

func (a *directoryAdapter) History(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	req := directory.GetHistoryRequest{ChannelID: channelID, Limit: limit}
	var resp directory.GetHistoryResponse
	if err := call(ctx, a.container, directory.ServiceGetHistory, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (a *directoryAdapter) ListGroups(ctx context.Context) ([]domain.Group, error) {
	req := directory.ListGroupsRequest{}
	var resp directory.ListGroupsResponse
	if err := call(ctx, a.container, directory.ServiceListGroups, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

func (a *directoryAdapter) CreateGroup(ctx context.Context, name, adminID string) (*domain.Group, error) {
	req := directory.CreateGroupRequest{Name: name, AdminID: adminID}
	var resp directory.CreateGroupResponse
	if err := call(ctx, a.container, directory.ServiceCreateGroup, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Group, nil
}

func (a *directoryAdapter) ListChannels(ctx context.Context, groupID string) ([]domain.Channel, error) {
	req := directory.ListChannelsRequest{GroupID: groupID}
	var resp directory.ListChannelsResponse
	if err := call(ctx, a.container, directory.ServiceListChannels, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

func (a *directoryAdapter) CreateChannel(ctx context.Context, groupID, name string) (*domain.Channel, error) {
	req := directory.CreateChannelRequest{GroupID: groupID, Name: name}
	var resp directory.CreateChannelResponse
	if err := call(ctx, a.container, directory.ServiceCreateChannel, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Channel, nil
}

func (a *directoryAdapter) DeleteChannel(ctx context.Context, channelID string) error {
	req := directory.DeleteChannelRequest{ChannelID: channelID}
	var resp directory.DeleteChannelResponse
	return call(ctx, a.container, directory.ServiceDeleteChannel, &req, &resp)
}

// authAdapter implements AuthPort over the service container.
type authAdapter struct {
	container mono.ServiceContainer
}

// newAuthAdapter creates an AuthPort backed by the auth module's
// services.
func newAuthAdapter(container mono.ServiceContainer) AuthPort {
	if container == nil {
		panic("gateway: auth ServiceContainer is nil")
	}
	return &authAdapter{container: container}
}

func (a *authAdapter) Login(ctx context.Context, username, password string) (*auth.LoginResponse, error) {
	req := auth.LoginRequest{Username: username, Password: password}
	var resp auth.LoginResponse
	if err := call(ctx, a.container, auth.ServiceLogin, &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *authAdapter) ValidateToken(ctx context.Context, token string) (*auth.ValidateTokenResponse, error) {
	req := auth.ValidateTokenRequest{Token: token}
	var resp auth.ValidateTokenResponse
	if err := call(ctx, a.container, auth.ServiceValidateToken, &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
