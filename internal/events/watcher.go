package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handler func(Event)

// Watcher follows a run-event channel and hands decoded events to a handler.
type Watcher struct {
	client *redis.Client
	log    *zap.Logger
}

func NewWatcher(client *redis.Client, log *zap.Logger) *Watcher {
	return &Watcher{client: client, log: log}
}

// Subscribe blocks until ctx is cancelled. ready, when non-nil, is closed
// once the subscription is confirmed by the server.
func (w *Watcher) Subscribe(ctx context.Context, channel string, ready chan<- struct{}, handle Handler) error {
	sub := w.client.Subscribe(ctx, channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	w.log.Info("subscribed to channel", zap.String("channel", channel))
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				w.log.Warn("failed to unmarshal event", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			handle(ev)
		}
	}
}
