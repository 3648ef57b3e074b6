package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultStream is the Redis stream key events are appended to.
	DefaultStream      = "custody:events:v1"
	eventField         = "event"
	defaultMaxLen      = 100_000
	defaultRecentLimit = 100
)

// RedisJournal appends events to a Redis stream.
type RedisJournal struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisJournal builds a journal writing to stream (DefaultStream when empty).
func NewRedisJournal(client *redis.Client, stream string) *RedisJournal {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisJournal{client: client, stream: stream, maxLen: defaultMaxLen}
}

// Send appends the JSON encoded event to the stream.
func (j *RedisJournal) Send(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = j.client.XAdd(ctx, &redis.XAddArgs{
		Stream: j.stream,
		MaxLen: j.maxLen,
		Approx: true,
		Values: map[string]any{eventField: string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("append event to %s: %w", j.stream, err)
	}
	return nil
}

// Recent reads the newest events from the stream, oldest first.
func (j *RedisJournal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	msgs, err := j.client.XRevRangeN(ctx, j.stream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("read events from %s: %w", j.stream, err)
	}
	events := make([]Event, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		raw, _ := msgs[i].Values[eventField].(string)
		var event Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", msgs[i].ID, err)
		}
		events = append(events, event)
	}
	return events, nil
}
