package gateway

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"fitpulse.app/coach/core/config"
	"fitpulse.app/coach/internal/backend"
	"fitpulse.app/coach/internal/bus"
)

var _ = Describe("Gateway", func() {
	var (
		ctx      context.Context
		recorder *notifierRecorder
		registry *Registry
		profiles *mockProfileClient
		gw       *Gateway
		sock     *fakeSocket
		served   chan struct{}
	)

	serveAsync := func() {
		served = make(chan struct{})
		go func() {
			defer GinkgoRecover()
			gw.serve(ctx, sock)
			close(served)
		}()
	}

	authenticate := func() {
		profiles.validateTokenFn = func(_ context.Context, token string) (*backend.User, error) {
			if token != "valid-token" {
				return nil, backend.ErrInvalidToken
			}
			return &backend.User{ID: 7, Name: "Анна", Email: "anna@example.com"}, nil
		}
		sock.push(EventAuthenticate, authenticatePayload{Token: "valid-token"})
		Eventually(sock.events).Should(ContainElement(EventAuthenticated))
	}

	BeforeEach(func() {
		ctx = context.Background()
		recorder = &notifierRecorder{}
		registry = NewRegistry(recorder.notify)
		profiles = &mockProfileClient{}
		gw = New(registry, profiles, config.GatewayConfig{AuthTimeout: 200 * time.Millisecond})
		sock = newFakeSocket()
		served = nil
	})

	AfterEach(func() {
		sock.Close()
		if served != nil {
			Eventually(served).Should(BeClosed())
		}
	})

	Describe("authentication", func() {
		It("registers the connection and replies with the user profile", func() {
			serveAsync()
			authenticate()

			reply, ok := sock.lastWrite(EventAuthenticated)
			Expect(ok).To(BeTrue())
			payload := reply.Data.(authenticatedPayload)
			Expect(payload.User.ID).To(Equal(int64(7)))
			Expect(payload.User.Name).To(Equal("Анна"))

			Eventually(func() int { return len(registry.ConnectionsFor(7)) }).Should(Equal(1))
			Eventually(recorder.all).Should(Equal([]string{"online"}))
		})

		It("rejects an invalid token and closes the connection", func() {
			profiles.validateTokenFn = func(_ context.Context, _ string) (*backend.User, error) {
				return nil, backend.ErrInvalidToken
			}

			serveAsync()
			sock.push(EventAuthenticate, authenticatePayload{Token: "bad"})

			Eventually(served).Should(BeClosed())
			Expect(sock.events()).To(ContainElement(EventAuthError))
			Expect(sock.isClosed()).To(BeTrue())
			Expect(registry.ConnectionsFor(7)).To(BeEmpty())
		})

		It("rejects a frame without a token", func() {
			serveAsync()
			sock.push(EventAuthenticate, map[string]string{})

			Eventually(served).Should(BeClosed())
			Expect(sock.events()).To(ContainElement(EventAuthError))
		})

		It("treats a backend outage as an auth failure", func() {
			profiles.validateTokenFn = func(_ context.Context, _ string) (*backend.User, error) {
				return nil, errors.New("profile endpoint timeout")
			}

			serveAsync()
			sock.push(EventAuthenticate, authenticatePayload{Token: "valid-token"})

			Eventually(served).Should(BeClosed())
			Expect(sock.events()).To(ContainElement(EventAuthError))
		})

		It("closes an unauthenticated connection when the deadline elapses", func() {
			gw = New(registry, profiles, config.GatewayConfig{AuthTimeout: 20 * time.Millisecond})
			serveAsync()

			Eventually(served, time.Second).Should(BeClosed())
			Expect(sock.events()).To(ContainElement(EventAuthTimeout))
			Expect(recorder.all()).To(BeEmpty())
		})

		It("does not time out a connection that authenticated in time", func() {
			gw = New(registry, profiles, config.GatewayConfig{AuthTimeout: 150 * time.Millisecond})
			serveAsync()
			authenticate()

			Consistently(sock.events, 300*time.Millisecond).ShouldNot(ContainElement(EventAuthTimeout))
			Expect(registry.ConnectionsFor(7)).To(HaveLen(1))
		})
	})

	Describe("disconnect", func() {
		It("unregisters and notifies offline for an authenticated connection", func() {
			serveAsync()
			authenticate()
			Eventually(recorder.all).Should(Equal([]string{"online"}))

			sock.Close()

			Eventually(served).Should(BeClosed())
			Eventually(recorder.all).Should(Equal([]string{"online", "offline"}))
			Expect(registry.ConnectionsFor(7)).To(BeEmpty())
		})
	})

	Describe("ping", func() {
		It("answers before authentication", func() {
			serveAsync()
			sock.push(EventPing, nil)

			Eventually(sock.events).Should(ContainElement(EventPong))
		})
	})

	Describe("debug", func() {
		It("echoes the payload and reports auth state", func() {
			serveAsync()
			sock.push(EventDebug, map[string]string{"hello": "world"})

			Eventually(sock.events).Should(ContainElement(EventDebugResponse))
			reply, _ := sock.lastWrite(EventDebugResponse)
			payload := reply.Data.(debugResponsePayload)
			Expect(payload.IsAuthenticated).To(BeFalse())
			Expect(payload.UserID).To(BeNil())
			Expect(string(payload.Received)).To(ContainSubstring("hello"))

			authenticate()
			sock.push(EventDebug, nil)

			Eventually(func() bool {
				reply, ok := sock.lastWrite(EventDebugResponse)
				return ok && reply.Data.(debugResponsePayload).IsAuthenticated
			}).Should(BeTrue())
		})
	})

	Describe("HandleChatMessage", func() {
		payload := bus.ChatMessagePayload{
			ID:       100,
			UserID:   7,
			Message:  "Сколько пить воды?",
			Response: "Около двух литров в день.",
		}

		It("delivers to every connection of the user", func() {
			a := &fakeSender{id: "conn-a"}
			b := &fakeSender{id: "conn-b"}
			registry.Register(ctx, 7, a)
			registry.Register(ctx, 7, b)

			gw.HandleChatMessage(ctx, payload)

			Expect(a.received()).To(Equal([]string{EventChatResponse}))
			Expect(b.received()).To(Equal([]string{EventChatResponse}))
		})

		It("silently drops when the user has no connections", func() {
			gw.HandleChatMessage(ctx, payload)
		})

		It("does not deliver to other users", func() {
			other := &fakeSender{id: "conn-other"}
			registry.Register(ctx, 8, other)

			gw.HandleChatMessage(ctx, payload)

			Expect(other.received()).To(BeEmpty())
		})
	})
})
