package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/port"
)

const defaultEntityCachePrefix = "downstream"

// EntityCache stores JSON snapshots of downstream entities in Redis.
type EntityCache struct {
	client *red.Client
	prefix string
}

// NewEntityCache wires a Redis client into an entity cache.
func NewEntityCache(client *red.Client, keyPrefix string) *EntityCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultEntityCachePrefix
	}

	return &EntityCache{client: client, prefix: prefix}
}

// Get decodes the snapshot stored under key into dest.
func (c *EntityCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	fullKey := c.key(key)
	if fullKey == "" {
		return false, errors.New("cache key must not be empty")
	}

	raw, err := c.client.Get(ctx, fullKey).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get entity: %w", err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode cached entity: %w", err)
	}

	return true, nil
}

// Set stores value as JSON under key for ttl.
func (c *EntityCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	fullKey := c.key(key)
	if fullKey == "" {
		return errors.New("cache key must not be empty")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode entity: %w", err)
	}

	if err := c.client.Set(ctx, fullKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set entity: %w", err)
	}

	return nil
}

// Delete removes every listed key; empty keys are skipped.
func (c *EntityCache) Delete(ctx context.Context, keys ...string) error {
	fullKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		if fullKey := c.key(key); fullKey != "" {
			fullKeys = append(fullKeys, fullKey)
		}
	}
	if len(fullKeys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, fullKeys...).Err(); err != nil {
		return fmt.Errorf("redis del entity: %w", err)
	}

	return nil
}

func (c *EntityCache) key(key string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.prefix, trimmed)
}

var _ port.EntityCache = (*EntityCache)(nil)
