package redisutils

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewRedisMatchmakeClient
// use addr=localhost:6379 for development and an empty password. Callers load these from
// config.Config, which reads REDIS_MATCHMAKE_ADDR and REDIS_PW.
func NewRedisMatchmakeClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       0, // use default DB
		Password: password,
		Protocol: 2,
		PoolSize: 20,
	})

	_, err := rdb.Ping(ctx).Result()
	return rdb, err
}
