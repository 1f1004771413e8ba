package service_test

import (
	"context"
	"time"

	"fitpulse.app/coach/internal/model"
	"fitpulse.app/coach/internal/queue"
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

type mockProducer struct {
	enqueueFn func(ctx context.Context, task queue.ChatTask) error
}

func (m *mockProducer) Enqueue(ctx context.Context, task queue.ChatTask) error {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, task)
	}
	return nil
}

func (m *mockProducer) Close() error { return nil }

// fakeCounterStore implements ratelimit.CounterStore in memory.
type fakeCounterStore struct {
	counts  map[string]int64
	incrErr error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counts: make(map[string]int64)}
}

func (s *fakeCounterStore) Incr(_ context.Context, key string) (int64, error) {
	if s.incrErr != nil {
		return 0, s.incrErr
	}
	s.counts[key]++
	return s.counts[key], nil
}

func (s *fakeCounterStore) ExpireNX(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return true, nil
}
