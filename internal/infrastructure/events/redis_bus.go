package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vidtube/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// envelope is the wire form of an edge event on the Redis channel.
type envelope struct {
	InstanceID string           `json:"instance_id"`
	SentAt     time.Time        `json:"sent_at"`
	Event      domain.EdgeEvent `json:"event"`
}

// RedisBus carries edge events between processes over Redis pub/sub, so an
// activity server can push events produced by any API instance.
type RedisBus struct {
	client     *redis.Client
	channel    string
	instanceID string
	logger     *zap.SugaredLogger
}

func NewRedisBus(client *redis.Client, channel, instanceID string, logger *zap.SugaredLogger) *RedisBus {
	return &RedisBus{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		logger:     logger,
	}
}

// PublishEdgeEvent implements ports.EventPublisher.
func (b *RedisBus) PublishEdgeEvent(ctx context.Context, event domain.EdgeEvent) error {
	data, err := json.Marshal(envelope{
		InstanceID: b.instanceID,
		SentAt:     time.Now().UTC(),
		Event:      event,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debugw("published edge event",
		"kind", event.Kind,
		"applied", event.Applied,
		"target_id", event.TargetID,
	)
	return nil
}

// Subscribe delivers events published by other instances to handler until
// ctx is done. Events from this instance are skipped; they were already
// delivered locally.
func (b *RedisBus) Subscribe(ctx context.Context, handler Handler) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// wait for the subscription confirmation before reading messages
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.Infow("subscribed to edge events", "channel", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warnw("failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}
			if env.InstanceID == b.instanceID {
				continue
			}
			if err := handler(ctx, env.Event); err != nil {
				b.logger.Warnw("error handling edge event",
					"kind", env.Event.Kind,
					"target_id", env.Event.TargetID,
					"error", err,
				)
			}
		}
	}
}
