package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	domain "github.com/example/group-chat-demo/domain/chat"
	"github.com/example/group-chat-demo/modules/hub"
	"github.com/example/group-chat-demo/modules/relay"
)

// Module is the HTTP/WebSocket transport. It terminates client
// connections and drives the relay; it owns no chat state itself.
type Module struct {
	app       *fiber.App
	hub       *hub.Hub
	relay     *relay.Relay
	signaling *relay.Signaling
	lifecycle *relay.Lifecycle
	directory DirectoryPort
	auth      AuthPort
	handlers  *wsHandlers
	port      string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the gateway module. Hub and relay are injected
// from main via SetHub/SetRelay because they are shared in-process
// state, not container services.
func NewModule() *Module {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	return &Module{
		port: port,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "gateway"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"directory", "auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "directory":
		m.directory = newDirectoryAdapter(container)
	case "auth":
		m.auth = newAuthAdapter(container)
	}
}

// SetHub sets the connection registry (called from main.go).
func (m *Module) SetHub(h *hub.Hub) {
	m.hub = h
}

// SetRelay wires the relay components (called from main.go).
func (m *Module) SetRelay(rm *relay.Module) {
	m.relay = rm.Relay()
	m.signaling = rm.Signaling()
	m.lifecycle = rm.Lifecycle()
}

// Start initializes the Fiber server and begins accepting connections.
func (m *Module) Start(_ context.Context) error {
	if m.directory == nil {
		return fmt.Errorf("directory adapter dependency not set")
	}
	if m.auth == nil {
		return fmt.Errorf("auth adapter dependency not set")
	}
	if m.hub == nil || m.relay == nil {
		return fmt.Errorf("hub/relay dependencies not set")
	}

	m.app = fiber.New(fiber.Config{
		AppName:               "Group Chat Demo",
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(loggerMiddleware())

	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:8080"
	}
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.handlers = newWSHandlers(m.hub, m.relay, m.signaling, m.lifecycle, m.directory, m.auth)
	m.setupRoutes()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Printf("[gateway] server started on :%s", m.port)
	return nil
}

// Stop gracefully shuts down the server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[gateway] Shutting down server...")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":        m.port,
			"connections": m.hub.ClientCount(),
		},
	}
}

// setupRoutes configures all HTTP and WebSocket routes.
func (m *Module) setupRoutes() {
	m.app.Get("/health", m.healthHandler)

	// WebSocket upgrade middleware
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handlers.handleWebSocket))

	api := m.app.Group("/api")
	api.Post("/auth/login", m.login)

	authed := api.Group("", m.authMiddleware())
	authed.Get("/groups", m.listGroups)
	authed.Post("/groups", m.requireRole(domain.RoleSuperAdmin), m.createGroup)
	authed.Get("/groups/:groupId/channels", m.listChannels)
	authed.Post("/groups/:groupId/channels", m.requireRole(domain.RoleGroupAdmin, domain.RoleSuperAdmin), m.createChannel)
	authed.Delete("/groups/:groupId/channels/:channelId", m.requireRole(domain.RoleGroupAdmin, domain.RoleSuperAdmin), m.deleteChannel)
	authed.Get("/channels/:channelId/messages", m.getHistory)
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		log.Printf("[gateway] %s %s %d", c.Method(), c.Path(), c.Response().StatusCode())
		return err
	}
}
