package transport

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

type BroadcastProducerType string
type BroadcastProducer interface {
	Publish(ctx context.Context, msg any) error
}

type RedisBroadcastProducer struct {
	rdb     *redis.Client
	channel string
}

func NewRedisBroadcastProducer(rdb *redis.Client, channel string) *RedisBroadcastProducer {
	return &RedisBroadcastProducer{
		rdb:     rdb,
		channel: channel,
	}
}

func (r *RedisBroadcastProducer) Publish(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, data).Err()
}
