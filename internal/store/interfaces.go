package store

import (
	"context"
	"errors"

	"fitpulse.app/coach/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// DefaultHistoryLimit bounds the conversation context handed to the model.
const DefaultHistoryLimit = 20

// ChatMessageStore defines the contract for chat message data access.
type ChatMessageStore interface {
	Create(ctx context.Context, msg *model.ChatMessage) error
	GetByID(ctx context.Context, id int64) (*model.ChatMessage, error)
	// Complete performs the idempotent terminal write: it sets the response
	// and clears the processing flag only if the message is still pending.
	// A second call for the same id is a no-op.
	Complete(ctx context.Context, id int64, response string) error
	// RecentHistory returns up to limit completed messages for the user,
	// oldest first, excluding excludeID and anything still pending.
	RecentHistory(ctx context.Context, userID, excludeID int64, limit int) ([]model.ChatMessage, error)
	// ListByUser returns the user's newest messages, oldest first,
	// pending ones included. Used by the chat API.
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.ChatMessage, error)
}
