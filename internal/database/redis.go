package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients holds the two connections the backend keeps open: Queue is
// dedicated to blocking pops on the attendance queue, Store serves token
// storage, rate limiting and worker locks. Keeping them apart means a
// blocked BLPOP never starves a token lookup.
type RedisClients struct {
	Queue *redis.Client
	Store *redis.Client
}

func NewRedisClients(redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	queueClient := redis.NewClient(opt)
	if err := queueClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis (queue): %w", err)
	}

	storeOpt := *opt
	storeClient := redis.NewClient(&storeOpt)
	if err := storeClient.Ping(ctx).Err(); err != nil {
		queueClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (store): %w", err)
	}

	return &RedisClients{
		Queue: queueClient,
		Store: storeClient,
	}, nil
}

func (r *RedisClients) Close() {
	r.Queue.Close()
	r.Store.Close()
}
