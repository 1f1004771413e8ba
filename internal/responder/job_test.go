package responder_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"fitpulse.app/coach/internal/bus"
	"fitpulse.app/coach/internal/llm"
	"fitpulse.app/coach/internal/model"
	"fitpulse.app/coach/internal/queue"
	"fitpulse.app/coach/internal/responder"
	"fitpulse.app/coach/internal/store"
)

var _ = Describe("Responder", func() {
	var (
		ctx       context.Context
		messages  *mockChatMessageStore
		client    *mockChatClient
		publisher *mockPublisher
		job       *responder.Responder

		pending model.ChatMessage
		task    queue.Message
	)

	BeforeEach(func() {
		ctx = context.Background()
		messages = &mockChatMessageStore{}
		client = &mockChatClient{}
		publisher = &mockPublisher{}
		job = responder.New(messages, client, publisher, responder.Config{
			MaxAttempts: 3,
			MaxTokens:   512,
			Temperature: 0.7,
		})

		pending = model.ChatMessage{
			ID:           100,
			UserID:       7,
			Message:      "Сколько раз в неделю мне тренироваться?",
			IsProcessing: true,
		}
		task = queue.Message{
			ID:            "1700000000-0",
			ChatMessageID: pending.ID,
			UserID:        pending.UserID,
			Attempt:       1,
		}

		messages.getByIDFn = func(_ context.Context, id int64) (*model.ChatMessage, error) {
			Expect(id).To(Equal(pending.ID))
			msg := pending
			return &msg, nil
		}
	})

	Describe("Process", func() {
		It("persists the model response and publishes it", func() {
			var completedID int64
			var completedResponse string
			messages.completeFn = func(_ context.Context, id int64, response string) error {
				completedID = id
				completedResponse = response
				return nil
			}

			client.completeFn = func(_ context.Context, req llm.Request) (string, error) {
				Expect(req.Turns).NotTo(BeEmpty())
				Expect(req.Turns[0].Role).To(Equal(llm.RoleSystem))
				Expect(req.MaxTokens).To(Equal(512))
				return "Три силовые тренировки в неделю — хорошая база.", nil
			}

			var published *bus.ChatMessagePayload
			publisher.publishChatFn = func(_ context.Context, payload bus.ChatMessagePayload) error {
				published = &payload
				return nil
			}

			Expect(job.Process(ctx, task)).To(Succeed())

			Expect(completedID).To(Equal(pending.ID))
			Expect(completedResponse).To(ContainSubstring("Три силовые"))

			Expect(published).NotTo(BeNil())
			Expect(published.ID).To(Equal(pending.ID))
			Expect(published.UserID).To(Equal(pending.UserID))
			Expect(published.IsProcessing).To(BeFalse())
			Expect(published.Error).To(BeFalse())
		})

		It("includes prior completed turns in the prompt", func() {
			prior := "Как улучшить сон?"
			answer := "Ложитесь в одно и то же время."
			messages.recentHistoryFn = func(_ context.Context, userID, excludeID int64, limit int) ([]model.ChatMessage, error) {
				Expect(userID).To(Equal(pending.UserID))
				Expect(excludeID).To(Equal(pending.ID))
				Expect(limit).To(Equal(store.DefaultHistoryLimit))
				return []model.ChatMessage{
					{ID: 90, UserID: 7, Message: prior, Response: &answer},
				}, nil
			}

			client.completeFn = func(_ context.Context, req llm.Request) (string, error) {
				// system + prior user + prior assistant + current user
				Expect(req.Turns).To(HaveLen(4))
				Expect(req.Turns[1].Content).To(Equal(prior))
				Expect(req.Turns[2].Role).To(Equal(llm.RoleAssistant))
				Expect(req.Turns[3].Content).To(Equal(pending.Message))
				return "ok", nil
			}

			Expect(job.Process(ctx, task)).To(Succeed())
		})

		It("drops the task when the message no longer exists", func() {
			messages.getByIDFn = func(_ context.Context, _ int64) (*model.ChatMessage, error) {
				return nil, store.ErrNotFound
			}

			called := false
			client.completeFn = func(_ context.Context, _ llm.Request) (string, error) {
				called = true
				return "", nil
			}

			Expect(job.Process(ctx, task)).To(Succeed())
			Expect(called).To(BeFalse())
		})

		It("skips a message that is already terminal", func() {
			response := "готово"
			messages.getByIDFn = func(_ context.Context, _ int64) (*model.ChatMessage, error) {
				return &model.ChatMessage{
					ID:           pending.ID,
					UserID:       pending.UserID,
					Message:      pending.Message,
					Response:     &response,
					IsProcessing: false,
				}, nil
			}

			called := false
			client.completeFn = func(_ context.Context, _ llm.Request) (string, error) {
				called = true
				return "", nil
			}

			Expect(job.Process(ctx, task)).To(Succeed())
			Expect(called).To(BeFalse())
		})

		It("returns an error on store failure so the queue retries", func() {
			messages.getByIDFn = func(_ context.Context, _ int64) (*model.ChatMessage, error) {
				return nil, errors.New("connection refused")
			}

			err := job.Process(ctx, task)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("connection refused"))
		})

		Context("when the model call fails", func() {
			BeforeEach(func() {
				client.completeFn = func(_ context.Context, _ llm.Request) (string, error) {
					return "", llm.ErrInsufficientBalance
				}
			})

			It("returns an error before the final attempt", func() {
				completed := false
				messages.completeFn = func(_ context.Context, _ int64, _ string) error {
					completed = true
					return nil
				}

				err := job.Process(ctx, task)
				Expect(err).To(MatchError(llm.ErrInsufficientBalance))
				Expect(completed).To(BeFalse())
			})

			It("persists the generic user-facing error on the final attempt", func() {
				task.Attempt = 3

				var persisted string
				messages.completeFn = func(_ context.Context, id int64, response string) error {
					Expect(id).To(Equal(pending.ID))
					persisted = response
					return nil
				}

				var published *bus.ChatMessagePayload
				publisher.publishChatFn = func(_ context.Context, payload bus.ChatMessagePayload) error {
					published = &payload
					return nil
				}

				Expect(job.Process(ctx, task)).To(Succeed())
				Expect(persisted).To(Equal(responder.UserFacingError))

				Expect(published).NotTo(BeNil())
				Expect(published.Error).To(BeTrue())
				Expect(published.Response).To(Equal(responder.UserFacingError))
			})

			It("uses the same user-facing text for every failure kind", func() {
				task.Attempt = 3
				var persisted []string
				messages.completeFn = func(_ context.Context, _ int64, response string) error {
					persisted = append(persisted, response)
					return nil
				}

				for _, upstreamErr := range []error{
					llm.ErrInvalidCredential,
					llm.ErrInsufficientBalance,
					llm.ErrModelNotFound,
					&llm.UpstreamError{StatusCode: 500, Body: "oops"},
				} {
					client.completeFn = func(_ context.Context, _ llm.Request) (string, error) {
						return "", upstreamErr
					}
					Expect(job.Process(ctx, task)).To(Succeed())
				}

				Expect(persisted).To(HaveLen(4))
				for _, p := range persisted {
					Expect(p).To(Equal(responder.UserFacingError))
				}
			})

			It("returns an error when the final error write fails", func() {
				task.Attempt = 3
				messages.completeFn = func(_ context.Context, _ int64, _ string) error {
					return errors.New("deadlock detected")
				}

				err := job.Process(ctx, task)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("deadlock detected"))
			})
		})

		It("swallows publish failures after a successful persist", func() {
			client.completeFn = func(_ context.Context, _ llm.Request) (string, error) {
				return "ответ", nil
			}
			publisher.publishChatFn = func(_ context.Context, _ bus.ChatMessagePayload) error {
				return errors.New("bus unavailable")
			}

			Expect(job.Process(ctx, task)).To(Succeed())
		})

		It("is not blocked by a failing capability probe", func() {
			client.probeFn = func(_ context.Context) (int, error) {
				return 0, errors.New("models endpoint down")
			}
			client.completeFn = func(_ context.Context, _ llm.Request) (string, error) {
				return "ответ", nil
			}

			Expect(job.Process(ctx, task)).To(Succeed())
		})
	})
})
