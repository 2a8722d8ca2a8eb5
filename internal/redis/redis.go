package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/uaifestas/festas-go/internal/config"
)

type Client struct {
	rdb *redis.Client
}

func NewClient(cfg *config.Config) *Client {
	return NewClientAddr(fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort), cfg.RedisPassword)
}

func NewClientAddr(addr, password string) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	return &Client{rdb: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Enqueue pushes payload onto the head of the list at key.
func (c *Client) Enqueue(ctx context.Context, key string, payload []byte) error {
	if err := c.rdb.LPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue on %s: %w", key, err)
	}
	return nil
}

// Dequeue pops from the tail of the list at key, waiting up to timeout.
// It returns nil, nil when nothing arrived in time.
func (c *Client) Dequeue(ctx context.Context, key string, timeout time.Duration) ([]byte, error) {
	result, err := c.rdb.BRPop(ctx, timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue from %s: %w", key, err)
	}
	// BRPOP replies with [key, value].
	return []byte(result[1]), nil
}

// QueueLength returns how many payloads are waiting at key.
func (c *Client) QueueLength(ctx context.Context, key string) (int64, error) {
	return c.rdb.LLen(ctx, key).Result()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
