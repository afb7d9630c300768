package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client wraps go-redis client to allow future extensions.
type Client struct {
	*redis.Client
}

// Open creates a new Redis client and pings it to validate the connection.
func Open(ctx context.Context, addr, password string, db int) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	return connect(ctx, &redis.Options{Addr: addr, Password: password, DB: db})
}

// OpenURL accepts a redis:// URL.
func OpenURL(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return connect(ctx, opts)
}

func connect(ctx context.Context, opts *redis.Options) (*Client, error) {
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &Client{Client: c}, nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
