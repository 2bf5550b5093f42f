// Package redis connects to the Redis server that holds subject leases.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"las/internal/platform/config"
	"las/pkg/platform/sentinel"
)

const clientName = "las"

// Client is the lease server connection.
type Client struct {
	*redis.Client
}

// Open connects to cfg.URL and pings it. It returns nil when no URL is set,
// in which case subject locks stay in process.
//
// Command deadlines follow the caller's context, so a lock wait or renewal
// never blocks past the lease it is trying to take or keep.
func Open(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.ClientName = clientName
	opts.ContextTimeoutEnabled = true
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := &Client{Client: redis.NewClient(opts)}
	if err := c.Check(ctx); err != nil {
		_ = c.Client.Close()
		return nil, err
	}
	return c, nil
}

// Check pings the server. A failure wraps sentinel.ErrUnavailable.
func (c *Client) Check(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}
