package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{user_id}:messages - per-minute message sends
// - ratelimit:{user_id}:ws       - per-minute websocket connects

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	MessageLimit    int           // Max messages per window
	MessageWindow   time.Duration // Message rate limit window
	WebSocketLimit  int           // Max ws connects per window
	WebSocketWindow time.Duration // WebSocket rate limit window
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:    60, // 60 messages per minute
		MessageWindow:   60 * time.Second,
		WebSocketLimit:  10, // 10 connects per minute
		WebSocketWindow: 60 * time.Second,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool          // Whether the action is allowed
	Remaining int           // Remaining actions in the window
	ResetIn   time.Duration // Time until the window resets
	Limit     int           // The limit for this action
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// AllowMessage checks if a user can send a message
func (r *RateLimiter) AllowMessage(ctx context.Context, userID string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:messages", userID)
	return r.checkLimit(ctx, key, r.config.MessageLimit, r.config.MessageWindow)
}

// AllowWebSocket checks if a user can open a websocket connection
func (r *RateLimiter) AllowWebSocket(ctx context.Context, userID string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:ws", userID)
	return r.checkLimit(ctx, key, r.config.WebSocketLimit, r.config.WebSocketWindow)
}

// checkLimit performs the actual rate limit check using a fixed window counter
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	// Lua script for atomic increment and check
	script := goredis.NewScript(`
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call('GET', key)
		if current == false then
			current = 0
		else
			current = tonumber(current)
		end

		if current >= limit then
			local ttl = redis.call('TTL', key)
			return {0, 0, ttl}
		end

		current = redis.call('INCR', key)
		if current == 1 then
			redis.call('EXPIRE', key, window)
		end
		local ttl = redis.call('TTL', key)
		return {1, limit - current, ttl}
	`)

	res, err := script.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Slice()
	if err != nil {
		return nil, err
	}

	allowed, _ := res[0].(int64)
	remaining, _ := res[1].(int64)
	ttl, _ := res[2].(int64)

	return &RateLimitResult{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(ttl) * time.Second,
		Limit:     limit,
	}, nil
}
