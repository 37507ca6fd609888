package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/metrics"
	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis creates a redis client and checks that the server answers.
func ConnectRedis(ctx context.Context, addr string, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// LinkCache keeps the user linked to a Telegram account in redis.
// A nil cache or one without a client misses on every lookup.
// Failures are logged and never reach the caller.
type LinkCache struct {
	client  *redis.Client
	ttl     time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewLinkCache creates a cache whose entries expire after ttl.
func NewLinkCache(log *slog.Logger, client *redis.Client, ttl time.Duration, appMetrics *metrics.Metrics) *LinkCache {
	return &LinkCache{
		client:  client,
		ttl:     ttl,
		log:     log.With("component", "link_cache"),
		metrics: appMetrics,
	}
}

func linkKey(telegramID int64) string {
	return fmt.Sprintf("taskpulse:link:user:%d", telegramID)
}

func (c *LinkCache) disabled() bool {
	return c == nil || c.client == nil
}

func (c *LinkCache) count(operation, result string) {
	if c.metrics != nil {
		c.metrics.CacheOps.WithLabelValues(operation, result).Inc()
	}
}

// Get returns the cached user of telegramID.
func (c *LinkCache) Get(ctx context.Context, telegramID int64) (models.User, bool) {
	var user models.User
	if c.disabled() {
		return user, false
	}

	payload, err := c.client.Get(ctx, linkKey(telegramID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.count("get", "miss")
		return user, false
	case err != nil:
		c.count("get", "error")
		c.log.WarnContext(ctx, "Failed to read linked user from cache", "user", telegramID, "error", err)
		return user, false
	}

	if err = json.Unmarshal(payload, &user); err != nil {
		c.count("get", "error")
		c.log.WarnContext(ctx, "Failed to decode cached user", "user", telegramID, "error", err)
		return models.User{}, false
	}

	c.count("get", "hit")
	return user, true
}

// Set stores user as the one linked to telegramID.
func (c *LinkCache) Set(ctx context.Context, telegramID int64, user models.User) {
	if c.disabled() {
		return
	}

	payload, err := json.Marshal(user)
	if err == nil {
		err = c.client.Set(ctx, linkKey(telegramID), payload, c.ttl).Err()
	}
	if err != nil {
		c.count("set", "error")
		c.log.WarnContext(ctx, "Failed to save linked user to cache", "user", telegramID, "error", err)
		return
	}
	c.count("set", "success")
}

// Delete drops the entry of telegramID.
func (c *LinkCache) Delete(ctx context.Context, telegramID int64) {
	if c.disabled() {
		return
	}

	if err := c.client.Del(ctx, linkKey(telegramID)).Err(); err != nil {
		c.count("delete", "error")
		c.log.WarnContext(ctx, "Failed to drop linked user from cache", "user", telegramID, "error", err)
		return
	}
	c.count("delete", "success")
}
