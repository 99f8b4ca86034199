package hub

// sendBuffer is the per-client outbound queue depth. A client that
// cannot drain this many frames is considered unresponsive and starts
// losing messages rather than stalling broadcasts.
const sendBuffer = 64

// Client is one live connection known to the hub. UserID is empty for
// unauthenticated connections (signaling-only sessions).
type Client struct {
	ID       string
	UserID   string
	Username string

	// Send carries marshaled outbound frames to the transport's write
	// pump. The hub owns the channel and closes it on unregister.
	Send chan []byte
}

// NewClient creates a client with a buffered send channel.
func NewClient(id, userID, username string) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Username: username,
		Send:     make(chan []byte, sendBuffer),
	}
}
