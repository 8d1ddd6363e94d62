package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strideapp/stride/internal/stride"
)

const (
	// StreamEvents is the Redis stream carrying discipline events from
	// the engine to the webhook delivery worker.
	StreamEvents = "discipline_events"

	// GroupWebhooks is the consumer group for delivery workers.
	GroupWebhooks = "webhook_pool"
)

// Queue is the detached outbox between the engine's transaction
// boundary and webhook delivery. Events are enqueued after commit;
// enqueue failures never roll back the state transition.
type Queue struct {
	client *redis.Client
}

// New creates a Queue from a Redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// ConnectRedis creates a Redis client from a URL.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// EnsureStream creates the consumer group if it doesn't exist.
func (q *Queue) EnsureStream(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, StreamEvents, GroupWebhooks, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("create group %s on %s: %w", GroupWebhooks, StreamEvents, err)
	}
	return nil
}

// Publish adds a discipline event to the events stream.
func (q *Queue) Publish(ctx context.Context, ev stride.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamEvents,
		Values: map[string]any{
			"id":          ev.ID,
			"name":        ev.Name,
			"user_id":     ev.UserID,
			"occurred_at": ev.OccurredAt.UTC().Format(time.RFC3339Nano),
			"data":        string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Read reads one event from the stream (blocking until one arrives).
func (q *Queue) Read(ctx context.Context, consumer string) (*stride.Event, string, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    GroupWebhooks,
		Consumer: consumer,
		Streams:  []string{StreamEvents, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		return nil, "", fmt.Errorf("read event: %w", err)
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			ev := &stride.Event{
				ID:     getString(msg.Values, "id"),
				Name:   getString(msg.Values, "name"),
				UserID: getString(msg.Values, "user_id"),
			}
			if ts := getString(msg.Values, "occurred_at"); ts != "" {
				ev.OccurredAt, _ = time.Parse(time.RFC3339Nano, ts)
			}
			if raw := getString(msg.Values, "data"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &ev.Data); err != nil {
					return nil, "", fmt.Errorf("unmarshal event %s data: %w", ev.ID, err)
				}
			}
			return ev, msg.ID, nil
		}
	}
	return nil, "", fmt.Errorf("no messages")
}

// Ack acknowledges a delivered event.
func (q *Queue) Ack(ctx context.Context, msgID string) error {
	return q.client.XAck(ctx, StreamEvents, GroupWebhooks, msgID).Err()
}

// Status returns the number of events in the stream.
func (q *Queue) Status(ctx context.Context) (int64, error) {
	return q.client.XLen(ctx, StreamEvents).Result()
}

func getString(values map[string]any, key string) string {
	if v, ok := values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
