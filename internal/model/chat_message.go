package model

import "time"

// ChatMessage is one user-submitted prompt and its (eventually) computed
// response. Response stays nil while IsProcessing is true; once the message
// is terminal the response is always non-nil, error text included.
type ChatMessage struct {
	ID           int64
	UserID       int64
	Message      string
	Response     *string
	IsProcessing bool
	CreatedAt    time.Time
}

// Terminal reports whether the message has already been completed.
// A terminal message must never be reprocessed, even if the queue
// redelivers its job.
func (m *ChatMessage) Terminal() bool {
	return !m.IsProcessing && m.Response != nil
}
