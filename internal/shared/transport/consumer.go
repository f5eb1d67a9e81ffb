package transport

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type BroadcastConsumerType string
type BroadcastConsumer interface {
	Subscribe(ctx context.Context) (<-chan []byte, <-chan error)
}

type RedisBroadcastConsumer struct {
	rdb     *redis.Client
	channel string
}

func NewRedisBroadcastConsumer(rdb *redis.Client, channel string) *RedisBroadcastConsumer {
	return &RedisBroadcastConsumer{
		rdb:     rdb,
		channel: channel,
	}
}

// Subscribe forwards raw payloads until ctx is done. The subscription is confirmed before
// returning so publishes made right after are not lost.
func (r *RedisBroadcastConsumer) Subscribe(ctx context.Context) (<-chan []byte, <-chan error) {
	msgCh := make(chan []byte)
	errCh := make(chan error, 1)

	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		errCh <- fmt.Errorf("redis subscribe to %s: %w", r.channel, err)
		close(msgCh)
		return msgCh, errCh
	}

	go func() {
		defer close(msgCh)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					errCh <- fmt.Errorf("redis subscription to %s closed", r.channel)
					return
				}
				select {
				case msgCh <- []byte(m.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return msgCh, errCh
}
