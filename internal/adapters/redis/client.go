package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

// ClientOptions configures the Redis client used by the Redis adapters.
type ClientOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewClient builds a client and verifies connectivity with PING.
func NewClient(ctx context.Context, opts ClientOptions) (*goredis.Client, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("missing REDIS_ADDR")
	}
	c := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}
