package gateway

import (
	"context"
	"encoding/json"
	"testing"

	domain "github.com/example/group-chat-demo/domain/chat"
	"github.com/example/group-chat-demo/modules/auth"
	"github.com/example/group-chat-demo/modules/hub"
	"github.com/example/group-chat-demo/modules/relay"
)

// fakeDirectory is a DirectoryPort stub with scriptable join decisions
// and a record of persisted messages.
type fakeDirectory struct {
	allowJoin bool
	reason    string
	saved     []domain.Message
}

func (f *fakeDirectory) CanJoin(_ context.Context, _, _ string) (bool, string, error) {
	return f.allowJoin, f.reason, nil
}

func (f *fakeDirectory) SaveMessage(_ context.Context, msg domain.Message) (domain.Message, error) {
	msg.ID = "msg-1"
	f.saved = append(f.saved, msg)
	return msg, nil
}

func (f *fakeDirectory) History(_ context.Context, _ string, _ int) ([]domain.Message, error) {
	return nil, nil
}

func (f *fakeDirectory) ListGroups(_ context.Context) ([]domain.Group, error) { return nil, nil }

func (f *fakeDirectory) CreateGroup(_ context.Context, _, _ string) (*domain.Group, error) {
	return nil, nil
}

func (f *fakeDirectory) ListChannels(_ context.Context, _ string) ([]domain.Channel, error) {
	return nil, nil
}

func (f *fakeDirectory) CreateChannel(_ context.Context, _, _ string) (*domain.Channel, error) {
	return nil, nil
}

func (f *fakeDirectory) DeleteChannel(_ context.Context, _ string) error { return nil }

type fakeAuth struct{}

func (f *fakeAuth) Login(_ context.Context, _, _ string) (*auth.LoginResponse, error) {
	return nil, nil
}

func (f *fakeAuth) ValidateToken(_ context.Context, _ string) (*auth.ValidateTokenResponse, error) {
	return nil, nil
}

func newTestHandlers(dir *fakeDirectory) (*wsHandlers, *hub.Hub) {
	h := hub.New()
	r := relay.NewRelay(h)
	s := relay.NewSignaling(h)
	l := relay.NewLifecycle(h, r, s)
	return newWSHandlers(h, r, s, l, dir, &fakeAuth{}), h
}

func connect(t *testing.T, handlers *wsHandlers, connID, userID, username string) *hub.Client {
	t.Helper()
	return handlers.lifecycle.OnConnect(connID, userID, username)
}

// frame pulls the next buffered frame for a client, decoded into a
// generic map.
func nextFrame(t *testing.T, c *hub.Client) map[string]any {
	t.Helper()
	select {
	case data := <-c.Send:
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("failed to decode frame %s: %v", data, err)
		}
		return decoded
	default:
		t.Fatal("no frame buffered")
		return nil
	}
}

func noFrames(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected frame: %s", data)
	default:
	}
}

func rawPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func TestHandleJoin_Allowed(t *testing.T) {
	dir := &fakeDirectory{allowJoin: true}
	handlers, h := newTestHandlers(dir)
	client := connect(t, handlers, "conn-1", "user-1", "alice")

	handlers.handleFrame(client, newRateLimiter(burstSize, messagesPerSecond), inboundFrame{
		Type:    inJoinChannel,
		Payload: rawPayload(t, channelPayload{ChannelID: "general"}),
	})

	if !h.InRoom("conn-1", "general") {
		t.Error("connection not in channel after join")
	}
	ack := nextFrame(t, client)
	if ack["type"] != outJoined || ack["channel_id"] != "general" {
		t.Errorf("ack = %v, want joined general", ack)
	}
}

func TestHandleJoin_Denied(t *testing.T) {
	dir := &fakeDirectory{allowJoin: false, reason: "not a group member"}
	handlers, h := newTestHandlers(dir)
	client := connect(t, handlers, "conn-1", "user-1", "alice")

	handlers.handleFrame(client, newRateLimiter(burstSize, messagesPerSecond), inboundFrame{
		Type:    inJoinChannel,
		Payload: rawPayload(t, channelPayload{ChannelID: "general"}),
	})

	if h.InRoom("conn-1", "general") {
		t.Error("denied join still added the connection to the channel")
	}
	frame := nextFrame(t, client)
	if frame["type"] != outError || frame["code"] != codeForbidden {
		t.Errorf("frame = %v, want forbidden error", frame)
	}
}

func TestHandleJoin_RequiresAuthentication(t *testing.T) {
	dir := &fakeDirectory{allowJoin: true}
	handlers, h := newTestHandlers(dir)
	client := connect(t, handlers, "conn-1", "", anonymousName)

	handlers.handleFrame(client, newRateLimiter(burstSize, messagesPerSecond), inboundFrame{
		Type:    inJoinChannel,
		Payload: rawPayload(t, channelPayload{ChannelID: "general"}),
	})

	if h.InRoom("conn-1", "general") {
		t.Error("anonymous connection joined a channel")
	}
	frame := nextFrame(t, client)
	if frame["code"] != codeUnauthorized {
		t.Errorf("frame code = %v, want %v", frame["code"], codeUnauthorized)
	}
}

func TestHandleSendMessage_RequiresMembership(t *testing.T) {
	dir := &fakeDirectory{allowJoin: true}
	handlers, _ := newTestHandlers(dir)
	client := connect(t, handlers, "conn-1", "user-1", "alice")

	handlers.handleFrame(client, newRateLimiter(burstSize, messagesPerSecond), inboundFrame{
		Type:    inSendMessage,
		Payload: rawPayload(t, messagePayload{ChannelID: "general", Content: "hello"}),
	})

	frame := nextFrame(t, client)
	if frame["code"] != codeNotInChannel {
		t.Errorf("frame code = %v, want %v", frame["code"], codeNotInChannel)
	}
	// The rejected message was never persisted
	if len(dir.saved) != 0 {
		t.Errorf("persisted %d messages, want 0", len(dir.saved))
	}
}

func TestHandleSendMessage_PersistsThenRelays(t *testing.T) {
	dir := &fakeDirectory{allowJoin: true}
	handlers, _ := newTestHandlers(dir)
	limiter := newRateLimiter(burstSize, messagesPerSecond)

	sender := connect(t, handlers, "conn-1", "user-1", "alice")
	member := connect(t, handlers, "conn-2", "user-2", "bob")
	for _, connID := range []string{"conn-1", "conn-2"} {
		if err := handlers.relay.JoinChannel(connID, "general"); err != nil {
			t.Fatalf("JoinChannel(%s) error = %v", connID, err)
		}
	}
	noFrames(t, member)
	nextFrame(t, sender) // bob's join announcement

	handlers.handleFrame(sender, limiter, inboundFrame{
		Type:    inSendMessage,
		Payload: rawPayload(t, messagePayload{ChannelID: "general", Content: "hello"}),
	})

	if len(dir.saved) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(dir.saved))
	}
	if dir.saved[0].UserID != "user-1" || dir.saved[0].Sender != "alice" {
		t.Errorf("persisted identity = %s/%s, want user-1/alice", dir.saved[0].UserID, dir.saved[0].Sender)
	}

	frame := nextFrame(t, member)
	if frame["type"] != relay.FrameMessageReceived {
		t.Errorf("member frame type = %v, want %v", frame["type"], relay.FrameMessageReceived)
	}
	noFrames(t, sender)
}

func TestHandleSendMessage_ImageOnly(t *testing.T) {
	dir := &fakeDirectory{allowJoin: true}
	handlers, _ := newTestHandlers(dir)

	sender := connect(t, handlers, "conn-1", "user-1", "alice")
	member := connect(t, handlers, "conn-2", "user-2", "bob")
	for _, connID := range []string{"conn-1", "conn-2"} {
		if err := handlers.relay.JoinChannel(connID, "general"); err != nil {
			t.Fatalf("JoinChannel(%s) error = %v", connID, err)
		}
	}
	nextFrame(t, sender) // bob's join announcement

	// An attachment with no text is a valid message
	handlers.handleFrame(sender, newRateLimiter(burstSize, messagesPerSecond), inboundFrame{
		Type:    inSendMessage,
		Payload: rawPayload(t, messagePayload{ChannelID: "general", Image: "cat.png"}),
	})

	if len(dir.saved) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(dir.saved))
	}
	if dir.saved[0].Image != "cat.png" || dir.saved[0].Content != "" {
		t.Errorf("persisted message = %+v, want image cat.png with empty content", dir.saved[0])
	}

	frame := nextFrame(t, member)
	if frame["type"] != relay.FrameMessageReceived {
		t.Errorf("member frame type = %v, want %v", frame["type"], relay.FrameMessageReceived)
	}
	noFrames(t, sender)
}

func TestHandleSendMessage_RateLimited(t *testing.T) {
	dir := &fakeDirectory{allowJoin: true}
	handlers, _ := newTestHandlers(dir)
	limiter := newRateLimiter(1, 1)

	client := connect(t, handlers, "conn-1", "user-1", "alice")
	if err := handlers.relay.JoinChannel("conn-1", "general"); err != nil {
		t.Fatalf("JoinChannel() error = %v", err)
	}

	payload := rawPayload(t, messagePayload{ChannelID: "general", Content: "hello"})
	handlers.handleFrame(client, limiter, inboundFrame{Type: inSendMessage, Payload: payload})
	handlers.handleFrame(client, limiter, inboundFrame{Type: inSendMessage, Payload: payload})

	if len(dir.saved) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(dir.saved))
	}
	frame := nextFrame(t, client)
	if frame["code"] != codeRateLimited {
		t.Errorf("frame code = %v, want %v", frame["code"], codeRateLimited)
	}
}

func TestHandleFrame_Validation(t *testing.T) {
	tests := []struct {
		name  string
		frame inboundFrame
	}{
		{"unknown type", inboundFrame{Type: "bogus"}},
		{"join without channel", inboundFrame{Type: inJoinChannel, Payload: json.RawMessage(`{}`)}},
		{"message without content or image", inboundFrame{
			Type:    inSendMessage,
			Payload: json.RawMessage(`{"channel_id":"general"}`),
		}},
		{"offer without description", inboundFrame{Type: inOffer, Payload: json.RawMessage(`{}`)}},
		{"candidate without candidate", inboundFrame{Type: inCandidate, Payload: json.RawMessage(`{}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := &fakeDirectory{allowJoin: true}
			handlers, _ := newTestHandlers(dir)
			client := connect(t, handlers, "conn-1", "user-1", "alice")

			handlers.handleFrame(client, newRateLimiter(burstSize, messagesPerSecond), tt.frame)

			frame := nextFrame(t, client)
			if frame["type"] != outError || frame["code"] != codeBadFrame {
				t.Errorf("frame = %v, want bad_frame error", frame)
			}
		})
	}
}

func TestHandleFrame_AfterDisconnectDropsReply(t *testing.T) {
	dir := &fakeDirectory{allowJoin: true}
	handlers, h := newTestHandlers(dir)
	client := connect(t, handlers, "conn-1", "user-1", "alice")

	handlers.lifecycle.OnDisconnect("conn-1")

	// A frame decoded just before teardown: the error reply must be
	// dropped, not enqueued to the closed send channel.
	handlers.handleFrame(client, newRateLimiter(burstSize, messagesPerSecond), inboundFrame{Type: "bogus"})

	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
}

func TestHandleFrame_SignalingFansOutGlobally(t *testing.T) {
	dir := &fakeDirectory{allowJoin: true}
	handlers, _ := newTestHandlers(dir)

	caller := connect(t, handlers, "conn-1", "user-1", "alice")
	peer := connect(t, handlers, "conn-2", "", anonymousName)

	handlers.handleFrame(caller, newRateLimiter(burstSize, messagesPerSecond), inboundFrame{
		Type:    inOffer,
		Payload: rawPayload(t, offerPayload{Description: json.RawMessage(`{"sdp":"v=0"}`)}),
	})

	frame := nextFrame(t, peer)
	if frame["type"] != relay.FrameOffer {
		t.Errorf("peer frame type = %v, want %v", frame["type"], relay.FrameOffer)
	}
	if frame["username"] != "alice" {
		t.Errorf("peer frame username = %v, want alice", frame["username"])
	}
	noFrames(t, caller)
}
