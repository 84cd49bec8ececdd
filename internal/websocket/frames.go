package websocket

// Inbound frame types. Everything a client can say over the socket; all
// server-to-client traffic flows as event envelopes instead.
const (
	FrameHeartbeat   = "heartbeat"
	FrameJoin        = "join"
	FrameLeave       = "leave"
	FrameTypingStart = "typing_start"
	FrameTypingStop  = "typing_stop"
)

// Frame is one inbound client frame.
type Frame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}
