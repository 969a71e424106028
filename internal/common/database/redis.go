// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"intake-service/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs the question cache and the submission throttle. Address
// may list several comma-separated nodes for a cluster deployment.
type RedisClient struct {
	Client redis.UniversalClient
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	addrs := splitAddrs(cfg.Address)
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redis: address is empty")
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        addrs,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return &RedisClient{Client: rdb}, nil
}

func splitAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

func (c *RedisClient) GetClient() redis.UniversalClient {
	return c.Client
}
