package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher is the outbound side of the realtime fan-out. Delivery is
// best-effort: the persisted stores remain the source of truth and a receiver
// that misses an event catches up on the next fetch.
type Publisher interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, env Envelope) error
	PublishToConversation(ctx context.Context, conversationID uuid.UUID, env Envelope) error
	// Broadcast reaches every connected client (presence transitions).
	Broadcast(ctx context.Context, env Envelope) error
}

// RedisPublisher fans events out over Redis pub/sub; the websocket bridge on
// each process forwards them into its hub.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishToUser(ctx context.Context, userID uuid.UUID, env Envelope) error {
	return p.publish(ctx, UserChannel(userID), env)
}

func (p *RedisPublisher) PublishToConversation(ctx context.Context, conversationID uuid.UUID, env Envelope) error {
	return p.publish(ctx, ConversationChannel(conversationID), env)
}

func (p *RedisPublisher) Broadcast(ctx context.Context, env Envelope) error {
	return p.publish(ctx, ChannelPresence, env)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, channel, data).Err()
}
