package bus

import "time"

// Default channel names. Deployments override them through config.
const (
	DefaultMessageChannel = "chat:messages"
	DefaultStatusChannel  = "chat:status"
)

// Presence states carried on the status channel.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ChatMessagePayload is the ephemeral notification published once per
// processed message. It is fire-and-forget: if no relay is subscribed at
// publish time the payload is lost and the persisted row stays the source
// of truth.
type ChatMessagePayload struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Message      string    `json:"message"`
	Response     string    `json:"response"`
	CreatedAt    time.Time `json:"created_at"`
	IsProcessing bool      `json:"is_processing"`
	Error        bool      `json:"error,omitempty"`
}

// StatusNotice announces a user's presence transition. Emitted by the
// gateway on first connection and last disconnection only.
type StatusNotice struct {
	UserID    int64     `json:"user_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
