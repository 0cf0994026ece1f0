package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisBroker publishes changes over Redis pub/sub and relays every message
// received on the channel into a local hub, so viewers connected to any
// instance see changes made on all instances.
type RedisBroker struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient creates a Redis client.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisBroker creates a broker relaying channel into hub.
func NewRedisBroker(client redis.UniversalClient, channel string, hub *Hub) *RedisBroker {
	return &RedisBroker{
		client:  client,
		channel: channel,
		hub:     hub,
	}
}

// Publish sends change to every instance, this one included.
func (b *RedisBroker) Publish(ctx context.Context, change domain.ReservationChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		recordPublished(resultError)
		return fmt.Errorf("marshal change: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		recordPublished(resultError)
		return fmt.Errorf("publish change: %w", err)
	}

	recordPublished(resultOK)
	return nil
}

// Run relays messages until ctx is cancelled. The subscription is confirmed
// before Run starts relaying; an error is returned if it cannot be established.
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			slog.Warn("failed to close redis subscription", "error", err)
		}
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}

	slog.Info("relaying reservation changes from redis", "channel", b.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var change domain.ReservationChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				slog.Warn("discarding malformed change message", "channel", msg.Channel, "error", err)
				continue
			}
			b.hub.Broadcast(change)
		}
	}
}

// Ping checks connectivity.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
