// Package cache wraps the Redis client used to memoize hot read paths,
// chiefly the per-JID allow-list check on every inbound message.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/avendano/forecourt/internal/config"
)

// whitelistTTL bounds staleness after an operator flips a flag directly in
// the database.
const whitelistTTL = 5 * time.Minute

// Cache wraps the go-redis client. A nil Cache is valid and answers every
// lookup as a miss, so callers need no nil checks and the daemon runs
// without Redis configured.
type Cache struct {
	client *redis.Client
	log    *zap.Logger
}

// New connects to Redis using the provided configuration. Returns nil when
// no address is configured.
func New(cfg config.RedisConfig, logger *zap.Logger) *Cache {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	log := logger.Named("cache")
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn("unable to reach redis", zap.Error(err))
	} else {
		log.Info("connected to redis")
	}
	return &Cache{client: client, log: log}
}

// Close closes the client.
func (c *Cache) Close() {
	if c != nil && c.client != nil {
		_ = c.client.Close()
	}
}

func whitelistKey(jid string) string {
	return "forecourt:whitelist:" + jid
}

// GetWhitelisted returns the cached allow-list flag for jid. The second
// return reports whether the cache held an answer.
func (c *Cache) GetWhitelisted(ctx context.Context, jid string) (bool, bool) {
	if c == nil || c.client == nil {
		return false, false
	}
	val, err := c.client.Get(ctx, whitelistKey(jid)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false
	}
	if err != nil {
		c.log.Debug("whitelist cache read failed", zap.Error(err))
		return false, false
	}
	return val == "1", true
}

// SetWhitelisted caches the allow-list flag for jid.
func (c *Cache) SetWhitelisted(ctx context.Context, jid string, ok bool) {
	if c == nil || c.client == nil {
		return
	}
	val := "0"
	if ok {
		val = "1"
	}
	if err := c.client.Set(ctx, whitelistKey(jid), val, whitelistTTL).Err(); err != nil {
		c.log.Debug("whitelist cache write failed", zap.Error(err))
	}
}

// InvalidateWhitelisted drops the cached flag for jid. Called when the admin
// API changes a contact's allow-list state.
func (c *Cache) InvalidateWhitelisted(ctx context.Context, jid string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, whitelistKey(jid)).Err(); err != nil {
		c.log.Debug("whitelist cache invalidate failed", zap.Error(err))
	}
}
