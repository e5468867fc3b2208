package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/config"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventBus fans session events out over Redis PubSub, one channel per exam,
// so every replica's monitors see every transition.
type EventBus struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewEventBus creates an EventBus.
func NewEventBus(rdb *redis.Client, log zerolog.Logger) *EventBus {
	return &EventBus{
		rdb: rdb,
		log: log.With().Str("component", "event_bus").Logger(),
	}
}

// Publish sends ev to its exam's channel.
func (b *EventBus) Publish(ctx context.Context, ev model.SessionEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.rdb.Publish(ctx, config.CacheKey.ExamEventsChannel(ev.ExamID.String()), raw).Err()
}

// Subscribe streams the events of one exam until ctx is cancelled. The
// returned channel is closed when the subscription ends. Undecodable
// messages are skipped.
func (b *EventBus) Subscribe(ctx context.Context, examID uuid.UUID) (<-chan model.SessionEvent, error) {
	sub := b.rdb.Subscribe(ctx, config.CacheKey.ExamEventsChannel(examID.String()))
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe exam events: %w", err)
	}

	out := make(chan model.SessionEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev model.SessionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("Skipping malformed session event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
