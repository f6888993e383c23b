package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-live/chat-client/pkg/log"
)

// RedisPubSub implements PubSub interface using Redis, so several dev
// server instances can share rooms.
type RedisPubSub struct {
	client *redis.Client
	buffer int
}

// NewRedisPubSub creates a new Redis-based PubSub instance.
func NewRedisPubSub(ctx context.Context, cfg RedisConfig, buffer int) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if buffer <= 0 {
		buffer = 256
	}
	return &RedisPubSub{client: client, buffer: buffer}, nil
}

// Publish publishes an event to the specified channel.
func (r *RedisPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return r.client.Publish(ctx, channel, data).Err()
}

// SubscribePattern subscribes to channels matching a pattern.
func (r *RedisPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	ps := r.client.PSubscribe(ctx, pattern)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("psubscribe %s: %w", pattern, err)
	}

	eventCh := make(chan *Event, r.buffer)
	go r.processMessages(ctx, ps, eventCh)
	return eventCh, nil
}

// Close closes the Redis client, ending every subscription.
func (r *RedisPubSub) Close() error {
	return r.client.Close()
}

// processMessages reads messages from the Redis pubsub and sends them to the event channel.
func (r *RedisPubSub) processMessages(ctx context.Context, ps *redis.PubSub, eventCh chan<- *Event) {
	defer close(eventCh)
	defer ps.Close()

	l := log.Ctx(ctx)
	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				l.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping undecodable event")
				continue
			}

			select {
			case eventCh <- &event:
			case <-ctx.Done():
				return
			default:
				// Channel full, skip message
				l.Warn().Str("channel", msg.Channel).Msg("subscriber queue full, event dropped")
			}
		}
	}
}
