package service_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"fitpulse.app/coach/internal/model"
	"fitpulse.app/coach/internal/queue"
	"fitpulse.app/coach/internal/ratelimit"
	"fitpulse.app/coach/internal/service"
)

var _ = Describe("ChatService", func() {
	var (
		ctx      context.Context
		messages *mockChatMessageStore
		producer *mockProducer
		counter  *fakeCounterStore
		svc      *service.ChatService
	)

	newService := func(limit int) *service.ChatService {
		limiter := ratelimit.New(counter, ratelimit.Config{
			DailyLimit: limit,
			Window:     24 * time.Hour,
		})
		return service.NewChatService(messages, limiter, producer)
	}

	BeforeEach(func() {
		ctx = context.Background()
		messages = &mockChatMessageStore{}
		producer = &mockProducer{}
		counter = newFakeCounterStore()
		svc = newService(50)
	})

	Describe("Submit", func() {
		It("persists a pending message and enqueues the job", func() {
			var created *model.ChatMessage
			messages.createFn = func(_ context.Context, msg *model.ChatMessage) error {
				created = msg
				return nil
			}

			var enqueued *queue.ChatTask
			producer.enqueueFn = func(_ context.Context, task queue.ChatTask) error {
				enqueued = &task
				return nil
			}

			msg, err := svc.Submit(ctx, 7, "Сколько раз в неделю тренироваться?")
			Expect(err).NotTo(HaveOccurred())

			Expect(msg.ID).NotTo(BeZero())
			Expect(msg.UserID).To(Equal(int64(7)))
			Expect(msg.IsProcessing).To(BeTrue())
			Expect(msg.Response).To(BeNil())

			Expect(created).NotTo(BeNil())
			Expect(created.ID).To(Equal(msg.ID))

			Expect(enqueued).NotTo(BeNil())
			Expect(enqueued.ChatMessageID).To(Equal(msg.ID))
			Expect(enqueued.UserID).To(Equal(int64(7)))
			Expect(enqueued.Attempt).To(Equal(1))
		})

		It("trims surrounding whitespace", func() {
			var created *model.ChatMessage
			messages.createFn = func(_ context.Context, msg *model.ChatMessage) error {
				created = msg
				return nil
			}

			_, err := svc.Submit(ctx, 7, "  привет  ")
			Expect(err).NotTo(HaveOccurred())
			Expect(created.Message).To(Equal("привет"))
		})

		It("rejects empty or whitespace-only text", func() {
			_, err := svc.Submit(ctx, 7, "   ")
			Expect(err).To(MatchError(service.ErrEmptyMessage))
		})

		It("rejects text over the length cap", func() {
			_, err := svc.Submit(ctx, 7, strings.Repeat("а", service.MaxMessageLength+1))
			Expect(err).To(MatchError(service.ErrMessageTooLong))
		})

		It("rejects the submission over quota without touching the store", func() {
			svc = newService(1)

			_, err := svc.Submit(ctx, 7, "первое")
			Expect(err).NotTo(HaveOccurred())

			created := false
			messages.createFn = func(_ context.Context, _ *model.ChatMessage) error {
				created = true
				return nil
			}

			_, err = svc.Submit(ctx, 7, "второе")
			Expect(err).To(MatchError(service.ErrQuotaExceeded))
			Expect(created).To(BeFalse())
		})

		It("rejects when the counter store is down and the policy is fail-closed", func() {
			counter.incrErr = errors.New("connection refused")

			_, err := svc.Submit(ctx, 7, "привет")
			Expect(err).To(MatchError(service.ErrQuotaExceeded))
		})

		It("propagates store failures", func() {
			messages.createFn = func(_ context.Context, _ *model.ChatMessage) error {
				return errors.New("database down")
			}

			_, err := svc.Submit(ctx, 7, "привет")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database down"))
		})

		It("surfaces enqueue failures so the client can retry", func() {
			producer.enqueueFn = func(_ context.Context, _ queue.ChatTask) error {
				return errors.New("stream unavailable")
			}

			_, err := svc.Submit(ctx, 7, "привет")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("stream unavailable"))
		})
	})

	Describe("History", func() {
		It("passes through the requested limit", func() {
			var gotLimit int
			messages.listByUserFn = func(_ context.Context, userID int64, limit int) ([]model.ChatMessage, error) {
				Expect(userID).To(Equal(int64(7)))
				gotLimit = limit
				return nil, nil
			}

			_, err := svc.History(ctx, 7, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(gotLimit).To(Equal(10))
		})

		It("clamps zero and oversized limits to the default", func() {
			var gotLimits []int
			messages.listByUserFn = func(_ context.Context, _ int64, limit int) ([]model.ChatMessage, error) {
				gotLimits = append(gotLimits, limit)
				return nil, nil
			}

			svc.History(ctx, 7, 0)
			svc.History(ctx, 7, 10_000)
			Expect(gotLimits).To(Equal([]int{50, 50}))
		})
	})
})
