package responder_test

import (
	"context"

	"fitpulse.app/coach/internal/bus"
	"fitpulse.app/coach/internal/llm"
	"fitpulse.app/coach/internal/model"
)

type mockChatMessageStore struct {
	createFn        func(ctx context.Context, msg *model.ChatMessage) error
	getByIDFn       func(ctx context.Context, id int64) (*model.ChatMessage, error)
	completeFn      func(ctx context.Context, id int64, response string) error
	recentHistoryFn func(ctx context.Context, userID, excludeID int64, limit int) ([]model.ChatMessage, error)
	listByUserFn    func(ctx context.Context, userID int64, limit int) ([]model.ChatMessage, error)
}

func (m *mockChatMessageStore) Create(ctx context.Context, msg *model.ChatMessage) error {
	if m.createFn != nil {
		return m.createFn(ctx, msg)
	}
	return nil
}

func (m *mockChatMessageStore) GetByID(ctx context.Context, id int64) (*model.ChatMessage, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockChatMessageStore) Complete(ctx context.Context, id int64, response string) error {
	if m.completeFn != nil {
		return m.completeFn(ctx, id, response)
	}
	return nil
}

func (m *mockChatMessageStore) RecentHistory(ctx context.Context, userID, excludeID int64, limit int) ([]model.ChatMessage, error) {
	if m.recentHistoryFn != nil {
		return m.recentHistoryFn(ctx, userID, excludeID, limit)
	}
	return nil, nil
}

func (m *mockChatMessageStore) ListByUser(ctx context.Context, userID int64, limit int) ([]model.ChatMessage, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, limit)
	}
	return nil, nil
}

type mockChatClient struct {
	completeFn func(ctx context.Context, req llm.Request) (string, error)
	probeFn    func(ctx context.Context) (int, error)
	model      string
}

func (m *mockChatClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, req)
	}
	return "", nil
}

func (m *mockChatClient) Probe(ctx context.Context) (int, error) {
	if m.probeFn != nil {
		return m.probeFn(ctx)
	}
	return 0, nil
}

func (m *mockChatClient) Model() string {
	if m.model != "" {
		return m.model
	}
	return "test-model"
}

type mockPublisher struct {
	publishChatFn   func(ctx context.Context, payload bus.ChatMessagePayload) error
	publishStatusFn func(ctx context.Context, notice bus.StatusNotice) error
}

func (m *mockPublisher) PublishChatMessage(ctx context.Context, payload bus.ChatMessagePayload) error {
	if m.publishChatFn != nil {
		return m.publishChatFn(ctx, payload)
	}
	return nil
}

func (m *mockPublisher) PublishStatus(ctx context.Context, notice bus.StatusNotice) error {
	if m.publishStatusFn != nil {
		return m.publishStatusFn(ctx, notice)
	}
	return nil
}
