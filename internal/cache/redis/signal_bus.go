package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// SignalBus implements domain.SignalBus using Redis Pub/Sub. Channel names are
// namespaced with the client prefix so that several deployments can share a
// Redis instance.
type SignalBus struct {
	c *Client
}

var _ domain.SignalBus = (*SignalBus)(nil)

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{c: c}
}

// Publish sends payload to every current subscriber of channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.c.rdb.Publish(ctx, sb.c.key("bus", channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of raw payloads for channel. The subscription
// and the returned channel are closed when ctx is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	name := sb.c.key("bus", channel)

	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = sb.c.rdb.PSubscribe(ctx, name)
	} else {
		pubsub = sb.c.rdb.Subscribe(ctx, name)
	}

	// Wait for the subscription confirmation before handing out the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}
