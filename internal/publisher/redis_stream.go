// Package publisher fans job and table events out to Redis streams and any
// other subscribers such as the WebSocket hub.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types.
const (
	EventJobQueued    = "job.queued"
	EventJobStarted   = "job.started"
	EventJobProgress  = "job.progress"
	EventJobFailure   = "job.entity_failed"
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
	EventTableReady   = "table.ready"
)

// Event is one message on the stream.
type Event struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Current   int       `json:"current,omitempty"`
	Total     int       `json:"total,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher accepts events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// RedisStreamPublisher publishes events to a Redis stream
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		stream: stream,
		maxLen: 10000,
	}
}

// NewRedisPublisher connects to redisURL and publishes to stream.
func NewRedisPublisher(redisURL, stream string) (*RedisStreamPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisStreamPublisher(client, stream), nil
}

// Stream returns the stream name.
func (p *RedisStreamPublisher) Stream() string { return p.stream }

// Close closes the Redis connection
func (p *RedisStreamPublisher) Close() error {
	return p.client.Close()
}

// Publish appends ev to the stream, trimming it to roughly maxLen entries.
func (p *RedisStreamPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	values, err := streamValues(ev)
	if err != nil {
		return err
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Err()
}

func streamValues(ev Event) (map[string]interface{}, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"type":      ev.Type,
		"data":      string(data),
		"timestamp": ev.Timestamp.Unix(),
	}, nil
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
