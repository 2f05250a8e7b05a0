package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"rental_marketplace/pkg/logger"
)

const publishTimeout = 2 * time.Second

// RedisBus publishes change signals on Redis pub/sub channels named
// "<prefix>:<topic>" and lets live connections subscribe to them.
type RedisBus struct {
	rdb    *redis.Client
	prefix string
	log    logger.Logger
}

func NewRedisBus(rdb *redis.Client, prefix string, log logger.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, prefix: prefix, log: log}
}

func (b *RedisBus) channel(topic string) string {
	if b.prefix == "" {
		return topic
	}
	return b.prefix + ":" + topic
}

func (b *RedisBus) Publish(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	var data json.RawMessage
	if event.Data != nil {
		raw, err := json.Marshal(event.Data)
		if err != nil {
			b.log.Error("Failed to encode change signal", "error", err, "topics", event.Topics)
			return
		}
		data = raw
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	for _, topic := range dedupe(event.Topics) {
		payload, err := json.Marshal(Envelope{Topic: topic, At: event.At, Data: data})
		if err != nil {
			b.log.Error("Failed to encode change signal", "error", err, "topic", topic)
			continue
		}
		if err := b.rdb.Publish(ctx, b.channel(topic), payload).Err(); err != nil {
			b.log.Warn("Failed to publish change signal", "error", err, "topic", topic)
		}
	}
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan Envelope, func(), error) {
	pubsub := b.rdb.Subscribe(ctx, b.channel(topic))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan Envelope, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("Dropping malformed change signal", "error", err, "channel", msg.Channel)
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = pubsub.Close() }, nil
}
