package hub

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrDuplicateConnection is returned by Register when the connection id
// is already known. The registration still succeeds: the stale entry is
// replaced and its send channel closed.
var ErrDuplicateConnection = errors.New("duplicate connection id")

// Hub is the single owner of the real-time membership state: which
// connections exist and which channel rooms each occupies. Rooms are
// created implicitly on first join and dropped when their last occupant
// leaves. The two membership maps are kept consistent under one mutex:
// connID is in rooms[roomID] exactly when roomID is in joined[connID].
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]struct{} // roomID -> connIDs
	joined  map[string]map[string]struct{} // connID -> roomIDs
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]struct{}),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Register records a new connection. On a duplicate id the previous
// entry is evicted (its send channel closed so its write pump exits)
// and ErrDuplicateConnection is returned for the caller to log.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, dup := h.clients[c.ID]
	if dup {
		h.removeLocked(prev)
	}
	h.clients[c.ID] = c
	h.joined[c.ID] = make(map[string]struct{})

	if dup {
		return ErrDuplicateConnection
	}
	return nil
}

// Unregister removes a connection from the registry and from every
// room it occupied, returning the client and its former room set so
// the lifecycle layer can announce the departures. Unknown ids are a
// no-op: disconnect handling must be idempotent.
func (h *Hub) Unregister(connID string) (*Client, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return nil, nil
	}

	rooms := make([]string, 0, len(h.joined[connID]))
	for roomID := range h.joined[connID] {
		rooms = append(rooms, roomID)
	}
	h.removeLocked(c)
	return c, rooms
}

// removeLocked deletes a client from all maps and closes its send
// channel. Must hold h.mu; after this no broadcast can reach c.Send,
// so closing it here cannot race a send.
func (h *Hub) removeLocked(c *Client) {
	for roomID := range h.joined[c.ID] {
		h.leaveLocked(roomID, c.ID)
	}
	delete(h.joined, c.ID)
	delete(h.clients, c.ID)
	close(c.Send)
}

// Join adds a connection to a room, creating the room on first join.
// Joining twice has no additional effect. Returns false when the
// connection is unknown or already a member.
func (h *Hub) Join(roomID, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return false
	}
	if _, ok := h.joined[connID][roomID]; ok {
		return false
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]struct{})
	}
	h.rooms[roomID][connID] = struct{}{}
	h.joined[connID][roomID] = struct{}{}
	return true
}

// Leave removes a connection from a room. Idempotent; returns whether
// a membership was actually removed. An emptied room is dropped.
func (h *Hub) Leave(roomID, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.joined[connID][roomID]; !ok {
		return false
	}
	delete(h.joined[connID], roomID)
	h.leaveLocked(roomID, connID)
	return true
}

func (h *Hub) leaveLocked(roomID, connID string) {
	if occupants, ok := h.rooms[roomID]; ok {
		delete(occupants, connID)
		if len(occupants) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast delivers payload to every occupant of roomID except
// excludeID. Delivery is best-effort against a snapshot of the room:
// a full send channel means the recipient is too slow and that one
// frame is dropped and logged, without affecting the rest of the
// fan-out. Returns the number of queued deliveries.
func (h *Hub) Broadcast(roomID string, payload []byte, excludeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for connID := range h.rooms[roomID] {
		if connID == excludeID {
			continue
		}
		if c, ok := h.clients[connID]; ok {
			sent += h.deliver(c, payload)
		}
	}
	return sent
}

// BroadcastAll delivers payload to every registered connection except
// excludeID, with the same best-effort semantics as Broadcast.
func (h *Hub) BroadcastAll(payload []byte, excludeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for connID, c := range h.clients {
		if connID == excludeID {
			continue
		}
		sent += h.deliver(c, payload)
	}
	return sent
}

// Send delivers payload to a single connection with the same
// best-effort semantics as Broadcast. Returns false when the
// connection is unknown or its queue is full. Holding the lock here
// keeps the enqueue from racing the channel close in removeLocked or
// CloseAll.
func (h *Hub) Send(connID string, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	return h.deliver(c, payload) == 1
}

func (h *Hub) deliver(c *Client, payload []byte) int {
	select {
	case c.Send <- payload:
		return 1
	default:
		slog.Warn("dropping frame for slow connection", "connID", c.ID)
		return 0
	}
}

// Occupants returns the current occupant connection ids of a room.
func (h *Hub) Occupants(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.rooms[roomID]))
	for connID := range h.rooms[roomID] {
		out = append(out, connID)
	}
	return out
}

// Rooms returns the rooms a connection currently occupies; empty for
// unknown connections.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.joined[connID]))
	for roomID := range h.joined[connID] {
		out = append(out, roomID)
	}
	return out
}

// InRoom reports whether a connection occupies a room.
func (h *Hub) InRoom(connID, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.joined[connID][roomID]
	return ok
}

// Client returns a registered client by connection id.
func (h *Hub) Client(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of occupied rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomOccupantCount returns the occupant count of a room.
func (h *Hub) RoomOccupantCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// CloseAll closes every client's send channel and clears all state.
// Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		close(c.Send)
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]struct{})
	h.joined = make(map[string]map[string]struct{})
}
