package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/group-chat-demo/modules/directory"
)

// ErrInvalidCredentials is returned for a bad username or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service names registered in the service container.
const (
	ServiceLogin         = "login"
	ServiceValidateToken = "validate-token"
)

// LoginRequest carries credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the signed token and the identity it encodes.
type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Roles    string `json:"roles"`
}

// ValidateTokenRequest carries a token to verify.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse carries the verified identity.
type ValidateTokenResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Roles    string `json:"roles"`
}

// Module issues and validates tokens. User records come from the
// directory module through the service container; this module holds no
// storage of its own.
type Module struct {
	jwtManager *JWTManager
	hasher     *PasswordHasher
	users      userSource
}

// userSource resolves usernames to stored user records.
type userSource interface {
	getUser(ctx context.Context, username string) (*directory.UserRecord, error)
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
)

// NewModule creates the auth module.
func NewModule() *Module {
	config := DefaultJWTConfig()
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.SecretKey = secret
	}
	return &Module{
		jwtManager: NewJWTManager(config),
		hasher:     NewPasswordHasher(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// Dependencies returns the module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"directory"}
}

// SetDependencyServiceContainer receives service containers from
// dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "directory" {
		m.users = &directoryClient{container: container}
	}
}

// Start checks wiring.
func (m *Module) Start(_ context.Context) error {
	if m.users == nil {
		return fmt.Errorf("directory dependency not set")
	}
	log.Println("[auth] Module started")
	return nil
}

// Stop logs shutdown.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[auth] Module stopped")
	return nil
}

// RegisterServices registers login and validate-token services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLogin, json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceValidateToken, json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate-token service: %w", err)
	}

	log.Println("[auth] Registered services: login, validate-token")
	return nil
}

func (m *Module) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (LoginResponse, error) {
	user, err := m.users.getUser(ctx, req.Username)
	if err != nil {
		return LoginResponse{}, ErrInvalidCredentials
	}
	if !m.hasher.Verify(req.Password, user.PasswordHash) {
		return LoginResponse{}, ErrInvalidCredentials
	}

	token, err := m.jwtManager.Generate(user.ID, user.Username, user.Roles)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return LoginResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
	}, nil
}

func (m *Module) handleValidateToken(_ context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.jwtManager.Validate(req.Token)
	if err != nil {
		return ValidateTokenResponse{}, err
	}
	return ValidateTokenResponse{
		UserID:   claims.UserID,
		Username: claims.Username,
		Roles:    claims.Roles,
	}, nil
}

// directoryClient calls the directory's get-user service.
type directoryClient struct {
	container mono.ServiceContainer
}

func (c *directoryClient) getUser(ctx context.Context, username string) (*directory.UserRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req := directory.GetUserRequest{Username: username}
	var resp directory.GetUserResponse
	if err := helper.CallRequestReplyService(
		ctx,
		c.container,
		directory.ServiceGetUser,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if resp.User == nil {
		return nil, errors.New("user not found")
	}
	return resp.User, nil
}
