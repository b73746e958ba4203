package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hylla/taskmon/internal/app"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a dashboard may be served stale.
const DefaultTTL = 30 * time.Second

// scanBatch is the SCAN page size used by Invalidate.
const scanBatch = 100

// Config holds configuration for the dashboard cache.
type Config struct {
	TTL       time.Duration
	KeyPrefix string
	Logger    *log.Logger
}

// Cache stores computed dashboards in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *log.Logger
}

var _ app.DashboardCache = (*Cache)(nil)

// Connect parses url, verifies the server answers, and returns a client.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("redis url must not be empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// New wraps client as an app.DashboardCache.
func New(client *redis.Client, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Cache{
		client: client,
		ttl:    cfg.TTL,
		prefix: cfg.KeyPrefix,
		logger: cfg.Logger,
	}
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// GetDashboard returns the cached dashboard for key. Misses and undecodable entries report ok=false.
func (c *Cache) GetDashboard(ctx context.Context, key string) (app.Dashboard, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return app.Dashboard{}, false, nil
	}
	if err != nil {
		c.logger.Warn("dashboard cache read failed", "key", key, "err", err)
		return app.Dashboard{}, false, err
	}
	var out app.Dashboard
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Warn("dashboard cache entry undecodable", "key", key, "err", err)
		return app.Dashboard{}, false, nil
	}
	return out, true, nil
}

// SetDashboard stores d under key for the configured TTL.
func (c *Cache) SetDashboard(ctx context.Context, key string, d app.Dashboard) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode dashboard: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("dashboard cache write failed", "key", key, "err", err)
		return err
	}
	return nil
}

// Invalidate drops every cached dashboard under the prefix.
func (c *Cache) Invalidate(ctx context.Context) error {
	pattern := c.key("dashboard:*")
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			c.logger.Warn("dashboard cache scan failed", "err", err)
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn("dashboard cache delete failed", "err", err)
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
