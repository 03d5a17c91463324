package cache

import (
	"context"
	"encoding/json"
	"time"

	"agencydesk/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache is a thin redis wrapper for short-lived read-side data such as
// dashboard stats. A nil client makes every method a no-op, so the app
// runs unchanged when redis is not configured.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logrus.Logger
}

func New(cfg *config.RedisConfig, log *logrus.Logger) *Cache {
	c := &Cache{ttl: cfg.CacheTTL, log: log}
	if !cfg.Enabled {
		return c
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnf("redis unavailable, caching disabled: %v", err)
		return c
	}

	c.rdb = rdb
	log.WithField("addr", cfg.Addr).Info("redis connected")
	return c
}

// GetObject fills dest from the cache. Returns false on miss or when
// caching is disabled.
func (c *Cache) GetObject(ctx context.Context, key string, dest any) bool {
	if c.rdb == nil {
		return false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warnf("redis get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.log.Warnf("redis unmarshal %s: %v", key, err)
		return false
	}
	return true
}

// SetObject stores obj under key with the configured TTL.
func (c *Cache) SetObject(ctx context.Context, key string, obj any) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warnf("redis set %s: %v", key, err)
	}
}

// Invalidate removes keys, typically after a write that changes stats.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c.rdb == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warnf("redis del: %v", err)
	}
}

// Close shuts down the redis connection if one exists.
func (c *Cache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
