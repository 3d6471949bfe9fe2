package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	RunStarted        = "run.started"
	RunFinished       = "run.finished"
	RunTerminated     = "run.terminated"
	CommandDispatched = "command.dispatched"
	LifecyclePrefix   = "lifecycle."
)

// Event is one step of a workload run as seen by watchers.
type Event struct {
	RunID  string    `json:"run_id"`
	Type   string    `json:"type"`
	LineNo int       `json:"line_no,omitempty"`
	Line   string    `json:"line,omitempty"`
	State  string    `json:"state,omitempty"`
	Status int       `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, channel, data).Err()
}

// Connect parses url and pings the server before handing back a client.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
