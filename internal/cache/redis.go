package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dialTimeout = 5 * time.Second

// Redis implements Cache on a Redis key/value store. Keys are bare short
// codes, values are raw destination URL strings.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the given Redis address and verifies the
// connection before returning.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Redis{client: client}, nil
}

func (c *Redis) Get(ctx context.Context, code string) (string, bool, error) {
	url, err := c.client.Get(ctx, code).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %q: %w", code, err)
	}
	return url, true, nil
}

func (c *Redis) Set(ctx context.Context, code, url string) error {
	if err := c.client.Set(ctx, code, url, 0).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", code, err)
	}
	return nil
}

func (c *Redis) Invalidate(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, code).Err(); err != nil {
		return fmt.Errorf("cache invalidate %q: %w", code, err)
	}
	return nil
}

func (c *Redis) Close() error {
	return c.client.Close()
}
