package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	domain "github.com/example/group-chat-demo/domain/chat"
	"github.com/example/group-chat-demo/modules/hub"
	"github.com/example/group-chat-demo/modules/relay"
)

// Rate limiting constants
const (
	messagesPerSecond = 10
	burstSize         = 20
)

const (
	anonymousName  = "Anonymous"
	serviceTimeout = 5 * time.Second
)

// wsHandlers owns the WebSocket connection handling.
type wsHandlers struct {
	hub       *hub.Hub
	relay     *relay.Relay
	signaling *relay.Signaling
	lifecycle *relay.Lifecycle
	directory DirectoryPort
	auth      AuthPort
	logger    *slog.Logger
}

func newWSHandlers(h *hub.Hub, r *relay.Relay, s *relay.Signaling, l *relay.Lifecycle, dir DirectoryPort, a AuthPort) *wsHandlers {
	return &wsHandlers{
		hub:       h,
		relay:     r,
		signaling: s,
		lifecycle: l,
		directory: dir,
		auth:      a,
		logger:    slog.Default(),
	}
}

// handleWebSocket handles a single WebSocket connection for its whole
// lifetime. A connection may be authenticated via a token query
// parameter; without one it can still take part in signaling but not
// join channels or send messages.
func (h *wsHandlers) handleWebSocket(c *websocket.Conn) {
	userID, username, ok := h.resolveIdentity(c)
	if !ok {
		return
	}

	connID := uuid.New().String()
	client := h.lifecycle.OnConnect(connID, userID, username)
	limiter := newRateLimiter(burstSize, messagesPerSecond)

	// Single writer: every outbound frame for this connection goes
	// through client.Send.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for data := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.lifecycle.OnDisconnect(connID)
		<-writerDone
		c.Close()
	}()

	h.logger.Info("WebSocket connected", "connID", connID, "username", username)

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", "connID", connID, "error", err)
			}
			break
		}

		var frame inboundFrame
		if err := json.Unmarshal(msgBytes, &frame); err != nil {
			h.sendError(client, codeBadFrame, "Invalid frame format")
			continue
		}

		h.handleFrame(client, limiter, frame)
	}

	h.logger.Info("WebSocket disconnected", "connID", connID)
}

// resolveIdentity validates the optional token query parameter. An
// invalid token closes the connection; a missing one yields an
// anonymous identity.
func (h *wsHandlers) resolveIdentity(c *websocket.Conn) (userID, username string, ok bool) {
	token := c.Query("token")
	if token == "" {
		return "", anonymousName, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), serviceTimeout)
	defer cancel()

	resp, err := h.auth.ValidateToken(ctx, token)
	if err != nil {
		data, _ := json.Marshal(errorFrame{
			Type:    outError,
			Code:    codeUnauthorized,
			Message: "Invalid or expired token",
		})
		_ = c.WriteMessage(websocket.TextMessage, data)
		c.Close()
		return "", "", false
	}
	return resp.UserID, resp.Username, true
}

// handleFrame dispatches one decoded inbound frame.
func (h *wsHandlers) handleFrame(client *hub.Client, limiter *rateLimiter, frame inboundFrame) {
	switch frame.Type {
	case inJoinChannel:
		h.handleJoin(client, frame.Payload)
	case inLeaveChannel:
		h.handleLeave(client, frame.Payload)
	case inSendMessage:
		h.handleSendMessage(client, limiter, frame.Payload)
	case inOffer:
		h.handleOffer(client, frame.Payload)
	case inAnswer:
		h.handleAnswer(client, frame.Payload)
	case inCandidate:
		h.handleCandidate(client, frame.Payload)
	case inLeave:
		h.signaling.HandleLeave(client.ID)
	default:
		h.sendError(client, codeBadFrame, "Unknown frame type: "+frame.Type)
	}
}

// handleJoin processes joinChannel frames. Membership is checked
// against the directory before the room mutation happens.
func (h *wsHandlers) handleJoin(client *hub.Client, payload json.RawMessage) {
	if client.UserID == "" {
		h.sendError(client, codeUnauthorized, "Authentication required to join a channel")
		return
	}

	var req channelPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.ChannelID == "" {
		h.sendError(client, codeBadFrame, "channel_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), serviceTimeout)
	defer cancel()

	allowed, reason, err := h.directory.CanJoin(ctx, client.UserID, req.ChannelID)
	if err != nil {
		h.logger.Error("CanJoin lookup failed", "connID", client.ID, "error", err)
		h.sendError(client, codeInternal, "Failed to verify channel access")
		return
	}
	if !allowed {
		h.sendError(client, codeForbidden, reason)
		return
	}

	if err := h.relay.JoinChannel(client.ID, req.ChannelID); err != nil {
		h.sendError(client, codeInternal, "Failed to join channel")
		return
	}

	h.send(client, ackFrame{Type: outJoined, ChannelID: req.ChannelID})
}

// handleLeave processes leaveChannel frames. Leaving a channel the
// connection never joined is a no-op.
func (h *wsHandlers) handleLeave(client *hub.Client, payload json.RawMessage) {
	var req channelPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.ChannelID == "" {
		h.sendError(client, codeBadFrame, "channel_id is required")
		return
	}

	h.relay.LeaveChannel(client.ID, req.ChannelID)
	h.send(client, ackFrame{Type: outLeft, ChannelID: req.ChannelID})
}

// handleSendMessage processes sendMessage frames: rate limit, room
// membership, persistence, then relay, in that order. A message that
// fails the membership check is neither stored nor delivered.
func (h *wsHandlers) handleSendMessage(client *hub.Client, limiter *rateLimiter, payload json.RawMessage) {
	if !limiter.allow() {
		h.sendError(client, codeRateLimited, "Rate limit exceeded, please slow down")
		return
	}

	if client.UserID == "" {
		h.sendError(client, codeUnauthorized, "Authentication required to send messages")
		return
	}

	var req messagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(client, codeBadFrame, "Invalid message payload")
		return
	}
	if req.ChannelID == "" || (req.Content == "" && req.Image == "") {
		h.sendError(client, codeBadFrame, "channel_id and content or image are required")
		return
	}

	if !h.hub.InRoom(client.ID, req.ChannelID) {
		h.sendError(client, codeNotInChannel, "You must join the channel before sending messages")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), serviceTimeout)
	defer cancel()

	saved, err := h.directory.SaveMessage(ctx, domain.Message{
		ChannelID: req.ChannelID,
		UserID:    client.UserID,
		Sender:    client.Username,
		Content:   req.Content,
		Image:     req.Image,
	})
	if err != nil {
		h.logger.Error("Failed to persist message", "connID", client.ID, "error", err)
		h.sendError(client, codeInternal, "Failed to store message")
		return
	}

	if err := h.relay.HandleChatMessage(client.ID, saved); err != nil {
		if errors.Is(err, relay.ErrNotInRoom) {
			h.sendError(client, codeNotInChannel, "You must join the channel before sending messages")
			return
		}
		h.sendError(client, codeInternal, "Failed to deliver message")
	}
}

func (h *wsHandlers) handleOffer(client *hub.Client, payload json.RawMessage) {
	var req offerPayload
	if err := json.Unmarshal(payload, &req); err != nil || len(req.Description) == 0 {
		h.sendError(client, codeBadFrame, "description is required")
		return
	}
	h.signaling.HandleOffer(client.ID, req.Description, client.Username)
}

func (h *wsHandlers) handleAnswer(client *hub.Client, payload json.RawMessage) {
	var req offerPayload
	if err := json.Unmarshal(payload, &req); err != nil || len(req.Description) == 0 {
		h.sendError(client, codeBadFrame, "description is required")
		return
	}
	h.signaling.HandleAnswer(client.ID, req.Description)
}

func (h *wsHandlers) handleCandidate(client *hub.Client, payload json.RawMessage) {
	var req candidatePayload
	if err := json.Unmarshal(payload, &req); err != nil || len(req.Candidate) == 0 {
		h.sendError(client, codeBadFrame, "candidate is required")
		return
	}
	h.signaling.HandleCandidate(client.ID, req.Candidate)
}

// send enqueues one frame for the connection's writer through the
// hub, which serializes the enqueue against channel close. Frames for
// a full queue are dropped, same as broadcast fan-out.
func (h *wsHandlers) send(client *hub.Client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal frame", "error", err)
		return
	}
	if !h.hub.Send(client.ID, data) {
		h.logger.Warn("Dropping frame for slow or closed connection", "connID", client.ID)
	}
}

func (h *wsHandlers) sendError(client *hub.Client, code, message string) {
	h.send(client, errorFrame{Type: outError, Code: code, Message: message})
}
