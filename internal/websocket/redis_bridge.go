package websocket

import (
	"context"

	"forum-chat/internal/redis"
)

// RedisBridge forwards events published on Redis into this process's hub, so
// every instance delivers to the clients it holds locally.
type RedisBridge struct {
	subscriber *redis.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber *redis.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

func (b *RedisBridge) Run(ctx context.Context, patterns []string) error {
	return b.subscriber.Subscribe(ctx, patterns, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}
