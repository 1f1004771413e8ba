package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitpulse.app/coach/internal/model"
)

type chatMessageStore struct {
	pool *pgxpool.Pool
}

func NewChatMessageStore(pool *pgxpool.Pool) ChatMessageStore {
	return &chatMessageStore{pool: pool}
}

func (s *chatMessageStore) Create(ctx context.Context, msg *model.ChatMessage) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (id, user_id, message, is_processing, created_at)
		VALUES ($1, $2, $3, true, now())
		RETURNING created_at`,
		msg.ID, msg.UserID, msg.Message,
	)
	if err := row.Scan(&msg.CreatedAt); err != nil {
		return fmt.Errorf("inserting chat message: %w", err)
	}
	msg.IsProcessing = true
	msg.Response = nil
	return nil
}

func (s *chatMessageStore) GetByID(ctx context.Context, id int64) (*model.ChatMessage, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, message, response, is_processing, created_at
		FROM chat_messages
		WHERE id = $1`,
		id,
	)

	var msg model.ChatMessage
	if err := row.Scan(&msg.ID, &msg.UserID, &msg.Message, &msg.Response, &msg.IsProcessing, &msg.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// Complete is the idempotent terminal write. The is_processing guard means
// a redelivered job can run this twice without clobbering the first result.
func (s *chatMessageStore) Complete(ctx context.Context, id int64, response string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE chat_messages
		SET response = $2, is_processing = false
		WHERE id = $1 AND is_processing`,
		id, response,
	)
	if err != nil {
		return fmt.Errorf("completing chat message: %w", err)
	}
	return nil
}

func (s *chatMessageStore) RecentHistory(ctx context.Context, userID, excludeID int64, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	// Newest N first, then flipped so the caller sees oldest-first order.
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, message, response, is_processing, created_at
		FROM chat_messages
		WHERE user_id = $1 AND id <> $2 AND NOT is_processing
		ORDER BY created_at DESC, id DESC
		LIMIT $3`,
		userID, excludeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	messages, err := scanChatMessages(rows)
	if err != nil {
		return nil, err
	}

	reverse(messages)
	return messages, nil
}

func (s *chatMessageStore) ListByUser(ctx context.Context, userID int64, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, message, response, is_processing, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chat messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanChatMessages(rows)
	if err != nil {
		return nil, err
	}

	reverse(messages)
	return messages, nil
}

func scanChatMessages(rows pgx.Rows) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	for rows.Next() {
		var msg model.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Message, &msg.Response, &msg.IsProcessing, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func reverse(messages []model.ChatMessage) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
