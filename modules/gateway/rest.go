package gateway

import (
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/group-chat-demo/modules/auth"
)

const (
	maxGroupNameLength   = 100
	maxChannelNameLength = 100
	defaultHistoryLimit  = 50
	maxHistoryLimit      = 200
)

// identityKey is the fiber.Ctx local holding the verified identity.
const identityKey = "identity"

// authMiddleware verifies the Bearer token and stores the identity in
// the request locals.
func (m *Module) authMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Missing or malformed Authorization header",
			})
		}

		identity, err := m.auth.ValidateToken(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// requireRole allows the request through when the identity holds any
// of the given roles.
func (m *Module) requireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := identityFrom(c)
		if identity == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authentication required",
			})
		}

		held := strings.Split(identity.Roles, ",")
		for _, want := range roles {
			for _, have := range held {
				if strings.TrimSpace(have) == want {
					return c.Next()
				}
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: "Insufficient role",
		})
	}
}

func identityFrom(c *fiber.Ctx) *auth.ValidateTokenResponse {
	identity, _ := c.Locals(identityKey).(*auth.ValidateTokenResponse)
	return identity
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":      "gateway",
			"connections": m.hub.ClientCount(),
			"channels":    m.hub.RoomCount(),
		},
	})
}

// login handles POST /api/auth/login.
func (m *Module) login(c *fiber.Ctx) error {
	var req loginBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "username and password are required",
		})
	}

	resp, err := m.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		log.Printf("[gateway] login failed for %q: %v", req.Username, err)
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "invalid_credentials",
			Message: "Invalid username or password",
		})
	}

	return c.JSON(resp)
}

// listGroups handles GET /api/groups.
func (m *Module) listGroups(c *fiber.Ctx) error {
	groups, err := m.directory.ListGroups(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list groups",
		})
	}
	return c.JSON(fiber.Map{"groups": groups})
}

// createGroup handles POST /api/groups.
func (m *Module) createGroup(c *fiber.Ctx) error {
	var req createGroupBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Group name is required",
		})
	}
	if len(req.Name) > maxGroupNameLength {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Group name too long (max 100 characters)",
		})
	}

	identity := identityFrom(c)
	group, err := m.directory.CreateGroup(c.UserContext(), req.Name, identity.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create group",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

// listChannels handles GET /api/groups/:groupId/channels.
func (m *Module) listChannels(c *fiber.Ctx) error {
	channels, err := m.directory.ListChannels(c.UserContext(), c.Params("groupId"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list channels",
		})
	}
	return c.JSON(fiber.Map{"channels": channels})
}

// createChannel handles POST /api/groups/:groupId/channels.
func (m *Module) createChannel(c *fiber.Ctx) error {
	var req createChannelBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Channel name is required",
		})
	}
	if len(req.Name) > maxChannelNameLength {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Channel name too long (max 100 characters)",
		})
	}

	channel, err := m.directory.CreateChannel(c.UserContext(), c.Params("groupId"), req.Name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create channel",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(channel)
}

// deleteChannel handles DELETE /api/groups/:groupId/channels/:channelId.
func (m *Module) deleteChannel(c *fiber.Ctx) error {
	if err := m.directory.DeleteChannel(c.UserContext(), c.Params("channelId")); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Channel not found",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// getHistory handles GET /api/channels/:channelId/messages.
func (m *Module) getHistory(c *fiber.Ctx) error {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "validation_error",
				Message: "limit must be between 1 and 200",
			})
		}
		limit = parsed
	}

	messages, err := m.directory.History(c.UserContext(), c.Params("channelId"), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to load message history",
		})
	}
	return c.JSON(fiber.Map{"messages": messages})
}
