package bus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"fitpulse.app/coach/common/logger"
)

// ChatMessageHandler consumes one bus payload. Handler errors are logged
// and dropped; the bus never re-delivers.
type ChatMessageHandler func(ctx context.Context, payload ChatMessagePayload)

// Subscriber pumps the chat message channel into a handler. Each subscriber
// process receives every published payload (broadcast fan-out at the bus
// layer).
type Subscriber struct {
	client  *redis.Client
	channel string
	handler ChatMessageHandler

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewSubscriber(client *redis.Client, channel string, handler ChatMessageHandler) *Subscriber {
	if channel == "" {
		channel = DefaultMessageChannel
	}
	return &Subscriber{
		client:    client,
		channel:   channel,
		handler:   handler,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or the context is cancelled.
func (s *Subscriber) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "coach.bus.subscriber",
	})

	defer close(s.stoppedCh)

	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	slog.InfoContext(ctx, "bus subscriber started", "channel", s.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "bus subscriber stopping")
			return
		case msg, ok := <-ch:
			if !ok {
				slog.WarnContext(ctx, "bus subscription closed")
				return
			}

			var payload ChatMessagePayload
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				slog.ErrorContext(ctx, "failed to decode bus payload",
					"error", err,
					"channel", s.channel)
				continue
			}

			s.handler(ctx, payload)
		}
	}
}

// Stop signals the subscriber to stop and waits for it to finish.
func (s *Subscriber) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}
