package gateway

import "encoding/json"

// Inbound frame types accepted from clients.
const (
	inJoinChannel  = "joinChannel"
	inLeaveChannel = "leaveChannel"
	inSendMessage  = "sendMessage"
	inOffer        = "offer"
	inAnswer       = "answer"
	inCandidate    = "ice-candidate"
	inLeave        = "leave"
)

// Outbound frame types owned by the gateway. Relay frames reuse the
// types defined in the relay package.
const (
	outError  = "error"
	outJoined = "joined"
	outLeft   = "left"
)

// inboundFrame is the envelope every client frame arrives in. Payload
// stays raw until the type is known.
type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// channelPayload covers joinChannel and leaveChannel frames.
type channelPayload struct {
	ChannelID string `json:"channel_id"`
}

// messagePayload is the client half of a chat message. Identity fields
// come from the connection, never from the payload.
type messagePayload struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Image     string `json:"image,omitempty"`
}

// offerPayload carries a WebRTC session description.
type offerPayload struct {
	Description json.RawMessage `json:"description"`
}

// candidatePayload carries a WebRTC ICE candidate.
type candidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
}

// ackFrame confirms a join or leave back to the requesting client.
type ackFrame struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`
}

// errorFrame reports a rejected client frame.
type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in errorFrame.Code.
const (
	codeBadFrame     = "bad_frame"
	codeUnauthorized = "unauthorized"
	codeNotInChannel = "not_in_channel"
	codeForbidden    = "forbidden"
	codeInternal     = "internal"
	codeRateLimited  = "rate_limited"
)

// loginBody is the REST login request.
type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// createGroupBody is the REST create-group request.
type createGroupBody struct {
	Name string `json:"name"`
}

// createChannelBody is the REST create-channel request.
type createChannelBody struct {
	Name string `json:"name"`
}

// ErrorResponse is the REST error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
