package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// RedisSink publishes events as JSON on a Redis pub/sub channel, where a
// stream overlay can subscribe to them.
type RedisSink struct {
	client  *redis.Client
	channel string
	timeout time.Duration
}

// NewRedisSink connects to url and verifies the connection.
func NewRedisSink(ctx context.Context, url, channel string) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisSinkFromClient(client, channel), nil
}

// NewRedisSinkFromClient wraps an existing client.
func NewRedisSinkFromClient(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel, timeout: time.Second}
}

// Emit publishes e. Failures are logged and otherwise ignored.
func (s *RedisSink) Emit(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Debug("Could not encode event", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		log.Debug("Could not publish event", "channel", s.channel, "err", err)
	}
}

// Close closes the Redis client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
