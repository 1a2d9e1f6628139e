// Package cache keeps the latest committed snapshot per session in Redis so
// reads (dashboards, reconnecting clients) never have to touch the engine.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/amornj/medsim-sub000/internal/engine"
)

// RedisConfig carries the connection settings for NewRedisClient.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient opens and pings a Redis connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// VitalsCache implements engine.SnapshotCache on a Redis client. Entries
// expire on their own so abandoned browser tabs do not pin memory.
type VitalsCache struct {
	client *redis.Client
	ttl    time.Duration
}

const defaultSnapshotTTL = 30 * time.Minute

func NewVitalsCache(client *redis.Client, ttl time.Duration) *VitalsCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &VitalsCache{client: client, ttl: ttl}
}

func snapshotKey(sessionID string) string {
	return "medsim:snapshot:" + sessionID
}

// Store overwrites the cached snapshot for the session.
func (c *VitalsCache) Store(ctx context.Context, snap engine.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey(snap.SessionID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// Get returns the cached snapshot, or nil when the session is unknown or the
// entry has expired.
func (c *VitalsCache) Get(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	data, err := c.client.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Delete drops the cached snapshot, used when a session is purged.
func (c *VitalsCache) Delete(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, snapshotKey(sessionID)).Err()
}
