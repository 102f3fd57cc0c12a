package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher forwards events to a Redis pub/sub channel so other
// processes can poll-refresh their views.
type RedisPublisher struct {
	client  redis.Cmdable
	channel string
}

// NewRedisPublisher builds a publisher for channel.
func NewRedisPublisher(client redis.Cmdable, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Handle is an EventHandler. Sensitive events are skipped.
func (p *RedisPublisher) Handle(ctx context.Context, event Event) error {
	if event.Sensitive() {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, body).Err()
}
