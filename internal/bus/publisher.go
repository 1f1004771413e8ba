package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher fans payloads out to every live subscriber of a channel.
// Publishing is at-most-once per subscriber: nothing is stored or replayed.
type Publisher interface {
	PublishChatMessage(ctx context.Context, payload ChatMessagePayload) error
	PublishStatus(ctx context.Context, notice StatusNotice) error
}

// redisPublishClient is the slice of *redis.Client the publisher needs,
// narrowed so tests can substitute a fake.
type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type redisPublisher struct {
	client         redisPublishClient
	messageChannel string
	statusChannel  string
}

func NewRedisPublisher(client redisPublishClient, messageChannel, statusChannel string) Publisher {
	if messageChannel == "" {
		messageChannel = DefaultMessageChannel
	}
	if statusChannel == "" {
		statusChannel = DefaultStatusChannel
	}
	return &redisPublisher{
		client:         client,
		messageChannel: messageChannel,
		statusChannel:  statusChannel,
	}
}

func (p *redisPublisher) PublishChatMessage(ctx context.Context, payload ChatMessagePayload) error {
	return p.publish(ctx, p.messageChannel, payload)
}

func (p *redisPublisher) PublishStatus(ctx context.Context, notice StatusNotice) error {
	return p.publish(ctx, p.statusChannel, notice)
}

func (p *redisPublisher) publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling bus payload: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}

	return nil
}
