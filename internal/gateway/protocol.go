package gateway

import (
	"encoding/json"
	"time"
)

// Client-to-gateway event names.
const (
	EventAuthenticate = "authenticate"
	EventPing         = "ping"
	EventDebug        = "debug"
)

// Gateway-to-client event names.
const (
	EventAuthenticated = "authenticated"
	EventAuthError     = "authentication_error"
	EventAuthTimeout   = "authentication_timeout"
	EventChatResponse  = "chat_response"
	EventPong          = "pong"
	EventDebugResponse = "debug_response"
)

// Envelope is the wire frame in both directions: an event name plus an
// event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type authenticatePayload struct {
	Token string `json:"token"`
}

type authenticatedPayload struct {
	User authenticatedUser `json:"user"`
}

type authenticatedUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type pongPayload struct {
	ServerTime time.Time `json:"server_time"`
}

type debugResponsePayload struct {
	Received        json.RawMessage `json:"received"`
	ServerTime      time.Time       `json:"server_time"`
	IsAuthenticated bool            `json:"is_authenticated"`
	UserID          *int64          `json:"user_id,omitempty"`
}
