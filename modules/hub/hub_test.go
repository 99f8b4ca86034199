package hub

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// drain reads every frame currently buffered on a client's channel.
func drain(c *Client) [][]byte {
	var frames [][]byte
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return frames
			}
			frames = append(frames, data)
		default:
			return frames
		}
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	h := New()

	c := NewClient("conn-1", "user-1", "alice")
	if err := h.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := h.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}

	removed, rooms := h.Unregister("conn-1")
	if removed == nil {
		t.Fatal("Unregister() returned nil client")
	}
	if len(rooms) != 0 {
		t.Errorf("Unregister() rooms = %v, want none", rooms)
	}
	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount() after unregister = %d, want 0", got)
	}

	// Unregistering again is a no-op
	if removed, _ := h.Unregister("conn-1"); removed != nil {
		t.Error("second Unregister() returned a client, want nil")
	}
}

func TestHub_RegisterDuplicateEvictsStale(t *testing.T) {
	h := New()

	stale := NewClient("conn-1", "user-1", "alice")
	if err := h.Register(stale); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h.Join("general", "conn-1")

	fresh := NewClient("conn-1", "user-1", "alice")
	err := h.Register(fresh)
	if !errors.Is(err, ErrDuplicateConnection) {
		t.Fatalf("Register() error = %v, want ErrDuplicateConnection", err)
	}

	// The stale client's channel is closed and its memberships dropped
	if _, ok := <-stale.Send; ok {
		t.Error("stale client Send channel still open")
	}
	if h.InRoom("conn-1", "general") {
		t.Error("stale membership survived eviction")
	}

	// The fresh client is the registered one
	got, ok := h.Client("conn-1")
	if !ok || got != fresh {
		t.Error("Client() did not return the fresh registration")
	}
	if got := h.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
}

func TestHub_JoinAndLeave(t *testing.T) {
	h := New()
	c := NewClient("conn-1", "user-1", "alice")
	if err := h.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if !h.Join("general", "conn-1") {
		t.Error("Join() = false, want true")
	}
	if !h.InRoom("conn-1", "general") {
		t.Error("InRoom() = false after join")
	}
	if got := h.RoomOccupantCount("general"); got != 1 {
		t.Errorf("RoomOccupantCount() = %d, want 1", got)
	}

	// Joining again is idempotent
	if h.Join("general", "conn-1") {
		t.Error("second Join() = true, want false")
	}
	if got := h.RoomOccupantCount("general"); got != 1 {
		t.Errorf("RoomOccupantCount() after double join = %d, want 1", got)
	}

	if !h.Leave("general", "conn-1") {
		t.Error("Leave() = false, want true")
	}
	if h.InRoom("conn-1", "general") {
		t.Error("InRoom() = true after leave")
	}

	// Leaving again is idempotent
	if h.Leave("general", "conn-1") {
		t.Error("second Leave() = true, want false")
	}

	// Empty room is garbage collected
	if got := h.RoomCount(); got != 0 {
		t.Errorf("RoomCount() = %d, want 0", got)
	}
}

func TestHub_JoinUnknownConnection(t *testing.T) {
	h := New()
	if h.Join("general", "ghost") {
		t.Error("Join() for unknown connection = true, want false")
	}
	if got := h.RoomCount(); got != 0 {
		t.Errorf("RoomCount() = %d, want 0", got)
	}
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	h := New()

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = NewClient(fmt.Sprintf("conn-%d", i), fmt.Sprintf("user-%d", i), "u")
		if err := h.Register(clients[i]); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		h.Join("general", clients[i].ID)
	}

	payload := []byte(`{"type":"messageReceived"}`)
	delivered := h.Broadcast("general", payload, "conn-0")
	if delivered != 2 {
		t.Errorf("Broadcast() delivered = %d, want 2", delivered)
	}

	if frames := drain(clients[0]); len(frames) != 0 {
		t.Errorf("sender received %d frames, want 0", len(frames))
	}
	for _, c := range clients[1:] {
		frames := drain(c)
		if len(frames) != 1 {
			t.Fatalf("client %s received %d frames, want 1", c.ID, len(frames))
		}
		if string(frames[0]) != string(payload) {
			t.Errorf("client %s payload = %s, want %s", c.ID, frames[0], payload)
		}
	}
}

func TestHub_BroadcastScopedToRoom(t *testing.T) {
	h := New()

	inRoom := NewClient("conn-1", "user-1", "alice")
	outside := NewClient("conn-2", "user-2", "bob")
	for _, c := range []*Client{inRoom, outside} {
		if err := h.Register(c); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	h.Join("general", "conn-1")
	h.Join("random", "conn-2")

	delivered := h.Broadcast("general", []byte("hello"), "")
	if delivered != 1 {
		t.Errorf("Broadcast() delivered = %d, want 1", delivered)
	}
	if frames := drain(outside); len(frames) != 0 {
		t.Errorf("client outside the room received %d frames, want 0", len(frames))
	}
}

func TestHub_BroadcastDropsWhenBufferFull(t *testing.T) {
	h := New()
	c := NewClient("conn-1", "user-1", "alice")
	if err := h.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h.Join("general", "conn-1")

	// Fill the buffer, then one more must be dropped without blocking
	for i := 0; i < sendBuffer; i++ {
		h.Broadcast("general", []byte("x"), "")
	}
	delivered := h.Broadcast("general", []byte("overflow"), "")
	if delivered != 0 {
		t.Errorf("Broadcast() on full buffer delivered = %d, want 0", delivered)
	}
}

func TestHub_BroadcastAll(t *testing.T) {
	h := New()

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = NewClient(fmt.Sprintf("conn-%d", i), "", "Anonymous")
		if err := h.Register(clients[i]); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	// Room membership is irrelevant to global fan-out
	h.Join("general", "conn-1")

	delivered := h.BroadcastAll([]byte(`{"type":"offer"}`), "conn-0")
	if delivered != 2 {
		t.Errorf("BroadcastAll() delivered = %d, want 2", delivered)
	}
	if frames := drain(clients[0]); len(frames) != 0 {
		t.Errorf("sender received %d frames, want 0", len(frames))
	}
}

func TestHub_Send(t *testing.T) {
	h := New()
	c := NewClient("conn-1", "user-1", "alice")
	if err := h.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if !h.Send("conn-1", []byte("hello")) {
		t.Error("Send() = false for registered connection")
	}
	frames := drain(c)
	if len(frames) != 1 || string(frames[0]) != "hello" {
		t.Errorf("client frames = %v, want [hello]", frames)
	}

	if h.Send("ghost", []byte("x")) {
		t.Error("Send() = true for unknown connection")
	}
}

func TestHub_SendAfterRemovalDoesNotPanic(t *testing.T) {
	h := New()
	c := NewClient("conn-1", "user-1", "alice")
	if err := h.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h.Unregister("conn-1")

	// The send channel is closed; the frame must be dropped, not
	// enqueued.
	if h.Send("conn-1", []byte("x")) {
		t.Error("Send() = true for unregistered connection")
	}

	c2 := NewClient("conn-2", "user-2", "bob")
	if err := h.Register(c2); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h.CloseAll()
	if h.Send("conn-2", []byte("x")) {
		t.Error("Send() = true after CloseAll")
	}
}

func TestHub_UnregisterReportsRooms(t *testing.T) {
	h := New()
	c := NewClient("conn-1", "user-1", "alice")
	if err := h.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h.Join("general", "conn-1")
	h.Join("random", "conn-1")

	_, rooms := h.Unregister("conn-1")
	if len(rooms) != 2 {
		t.Fatalf("Unregister() rooms = %v, want 2 entries", rooms)
	}
	seen := map[string]bool{}
	for _, r := range rooms {
		seen[r] = true
	}
	if !seen["general"] || !seen["random"] {
		t.Errorf("Unregister() rooms = %v, want general and random", rooms)
	}
	if got := h.RoomCount(); got != 0 {
		t.Errorf("RoomCount() after unregister = %d, want 0", got)
	}
}

func TestHub_Occupants(t *testing.T) {
	h := New()
	for _, id := range []string{"conn-1", "conn-2"} {
		c := NewClient(id, id, "u")
		if err := h.Register(c); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		h.Join("general", id)
	}

	occupants := h.Occupants("general")
	if len(occupants) != 2 {
		t.Fatalf("Occupants() = %v, want 2 entries", occupants)
	}

	if got := h.Occupants("empty"); len(got) != 0 {
		t.Errorf("Occupants() for unknown room = %v, want empty", got)
	}
}

func TestHub_ConcurrentJoinLeave(t *testing.T) {
	h := New()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			c := NewClient(id, id, "u")
			if err := h.Register(c); err != nil {
				t.Errorf("Register() error = %v", err)
				return
			}
			h.Join("general", id)
			h.Broadcast("general", []byte("x"), id)
			h.Leave("general", id)
			h.Unregister(id)
		}(i)
	}
	wg.Wait()

	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
	if got := h.RoomCount(); got != 0 {
		t.Errorf("RoomCount() = %d, want 0", got)
	}
}
