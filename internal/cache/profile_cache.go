// Package cache keeps recently read profile rows in Redis.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/profilesync"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = time.Hour

type ProfileCache struct {
	r   *redis.Client
	ttl time.Duration
}

func NewProfileCache(r *redis.Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ProfileCache{r: r, ttl: ttl}
}

// Connect parses a redis:// URL and checks the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func key(id uuid.UUID) string { return "profile:" + id.String() }

// Get returns redis.Nil on a miss.
func (c *ProfileCache) Get(ctx context.Context, id uuid.UUID) (*profilesync.Record, error) {
	b, err := c.r.Get(ctx, key(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var rec profilesync.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Set stores rec unconditionally. Writers call it after a committed change.
func (c *ProfileCache) Set(ctx context.Context, rec *profilesync.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.r.Set(ctx, key(rec.ID), b, c.ttl).Err()
}

// Fill stores rec only if no entry exists, so a row read before a concurrent
// write cannot replace the entry that write stored. It reports whether rec
// was stored.
func (c *ProfileCache) Fill(ctx context.Context, rec *profilesync.Record) (bool, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	return c.r.SetNX(ctx, key(rec.ID), b, c.ttl).Result()
}

func (c *ProfileCache) Delete(ctx context.Context, id uuid.UUID) error {
	return c.r.Del(ctx, key(id)).Err()
}
