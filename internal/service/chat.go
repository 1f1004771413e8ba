package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"fitpulse.app/coach/common/id"
	"fitpulse.app/coach/internal/model"
	"fitpulse.app/coach/internal/queue"
	"fitpulse.app/coach/internal/ratelimit"
	"fitpulse.app/coach/internal/store"
)

var (
	// ErrQuotaExceeded means the user hit their daily message quota.
	ErrQuotaExceeded = errors.New("daily message quota exceeded")
	// ErrEmptyMessage means the submitted text was empty or whitespace.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrMessageTooLong means the submitted text exceeds MaxMessageLength.
	ErrMessageTooLong = errors.New("message text too long")
)

// MaxMessageLength bounds a single submitted prompt.
const MaxMessageLength = 4000

const defaultListLimit = 50

// ChatService accepts user messages into the pipeline. Submit is
// fire-and-forget: it persists the pending row and enqueues the job, and the
// response arrives later over the bus or via History polling.
type ChatService struct {
	messages store.ChatMessageStore
	limiter  *ratelimit.Limiter
	producer queue.Producer
}

func NewChatService(messages store.ChatMessageStore, limiter *ratelimit.Limiter, producer queue.Producer) *ChatService {
	return &ChatService{
		messages: messages,
		limiter:  limiter,
		producer: producer,
	}
}

// Submit validates and persists a new pending message, then enqueues the
// response job. The returned message has no response yet.
func (s *ChatService) Submit(ctx context.Context, userID int64, text string) (*model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	allowed, err := s.limiter.Allow(ctx, userID)
	if err != nil {
		// The limiter already decided per its failure policy; the error is
		// diagnostic only.
		slog.WarnContext(ctx, "quota check degraded",
			"error", err,
			"allowed", allowed,
			"user_id", userID)
	}
	if !allowed {
		return nil, ErrQuotaExceeded
	}

	msg := &model.ChatMessage{
		ID:           id.New(),
		UserID:       userID,
		Message:      text,
		IsProcessing: true,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating chat message: %w", err)
	}

	task := queue.ChatTask{
		ChatMessageID: msg.ID,
		UserID:        userID,
		Attempt:       1,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		traceID := sc.TraceID().String()
		task.TraceID = &traceID
	}

	if err := s.producer.Enqueue(ctx, task); err != nil {
		// Row stays pending with no job behind it. Surface the failure so
		// the client retries instead of waiting on a response that will
		// never come.
		return nil, fmt.Errorf("enqueuing chat task: %w", err)
	}

	return msg, nil
}

// History returns the user's recent messages, oldest first, pending
// messages included.
func (s *ChatService) History(ctx context.Context, userID int64, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	return s.messages.ListByUser(ctx, userID, limit)
}
