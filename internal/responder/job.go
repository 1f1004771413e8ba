package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fitpulse.app/coach/common/logger"
	"fitpulse.app/coach/internal/bus"
	"fitpulse.app/coach/internal/llm"
	"fitpulse.app/coach/internal/model"
	"fitpulse.app/coach/internal/queue"
	"fitpulse.app/coach/internal/store"
)

// UserFacingError is the single message persisted for every upstream
// failure kind. The taxonomy (credential, balance, model, other) is kept
// rich in the logs and opaque to the user on purpose.
const UserFacingError = "К сожалению, не удалось получить ответ. Попробуйте ещё раз позже."

type Config struct {
	MaxAttempts int
	MaxTokens   int
	Temperature float64
}

// Responder executes one AI response job: build the prompt from history,
// call the model, write the terminal state, publish the result. The
// terminal write is idempotent, so a redelivered job is a no-op.
type Responder struct {
	messages  store.ChatMessageStore
	client    llm.ChatClient
	publisher bus.Publisher
	cfg       Config
}

func New(messages store.ChatMessageStore, client llm.ChatClient, publisher bus.Publisher, cfg Config) *Responder {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Responder{
		messages:  messages,
		client:    client,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Process handles one queue delivery. A returned error means the attempt
// failed before the terminal write and the queue should redeliver; nil
// means the message is settled (including the persisted-error outcome).
func (r *Responder) Process(ctx context.Context, task queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ChatMessageID: logger.Ptr(task.ChatMessageID),
		UserID:        logger.Ptr(task.UserID),
		StreamMsgID:   logger.Ptr(task.ID),
		Component:     "coach.worker.responder",
	})

	msg, err := r.messages.GetByID(ctx, task.ChatMessageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "chat message vanished, dropping task")
			return nil
		}
		return fmt.Errorf("loading chat message: %w", err)
	}

	// Redelivery guard: a terminal message must never be reprocessed, even
	// if the queue hands the job back for infrastructure reasons.
	if msg.Terminal() {
		slog.InfoContext(ctx, "chat message already completed, skipping")
		return nil
	}

	history, err := r.messages.RecentHistory(ctx, msg.UserID, msg.ID, store.DefaultHistoryLimit)
	if err != nil {
		return fmt.Errorf("loading conversation history: %w", err)
	}

	turns := BuildPrompt(history, msg.Message)

	// Capability probe of the model-listing endpoint. Informational only:
	// logged and never allowed to block or alter the main call.
	if count, probeErr := r.client.Probe(ctx); probeErr != nil {
		slog.WarnContext(ctx, "model capability probe failed", "error", probeErr)
	} else {
		slog.DebugContext(ctx, "model capability probe", "models", count, "model", r.client.Model())
	}

	response, err := r.client.Complete(ctx, llm.Request{
		Turns:       turns,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return r.handleModelFailure(ctx, msg, task.Attempt, err)
	}

	if err := r.messages.Complete(ctx, msg.ID, response); err != nil {
		return fmt.Errorf("persisting response: %w", err)
	}

	slog.InfoContext(ctx, "chat response persisted",
		"history_turns", len(turns),
		"response_len", len(response))

	r.publish(ctx, msg, response, false)
	return nil
}

// handleModelFailure decides between another queue attempt and settling the
// message with the generic user-facing error. All upstream error kinds share
// the same retry budget; they differ only in what was logged at the client.
func (r *Responder) handleModelFailure(ctx context.Context, msg *model.ChatMessage, attempt int, err error) error {
	if attempt < r.cfg.MaxAttempts {
		return fmt.Errorf("model call failed (attempt %d/%d): %w", attempt, r.cfg.MaxAttempts, err)
	}

	slog.ErrorContext(ctx, "model call failed on final attempt, persisting error response",
		"error", err,
		"attempt", attempt)

	if completeErr := r.messages.Complete(ctx, msg.ID, UserFacingError); completeErr != nil {
		return fmt.Errorf("persisting error response: %w", completeErr)
	}

	r.publish(ctx, msg, UserFacingError, true)
	return nil
}

// publish is best-effort by contract: a broken bus must never fail a
// persistence step that already succeeded.
func (r *Responder) publish(ctx context.Context, msg *model.ChatMessage, response string, isError bool) {
	payload := bus.ChatMessagePayload{
		ID:           msg.ID,
		UserID:       msg.UserID,
		Message:      msg.Message,
		Response:     response,
		CreatedAt:    msg.CreatedAt,
		IsProcessing: false,
		Error:        isError,
	}

	if err := r.publisher.PublishChatMessage(ctx, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish chat response, clients must poll", "error", err)
	}
}
