// Package cache is a Redis read-through cache for idempotent responses. The
// Postgres ledger stays the source of truth; the cache only short-circuits
// replays of recently seen keys.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:"

// Entry is the cached outcome of a completed intake request.
type Entry struct {
	PayloadHash string          `json:"payloadHash"`
	StatusCode  int             `json:"statusCode"`
	Response    json.RawMessage `json:"response"`
}

// Cache stores idempotency entries in Redis with a TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a cache over an existing Redis client.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached entry for an idempotency key, if present.
func (c *Cache) Get(ctx context.Context, key string) (Entry, bool, error) {
	if c == nil || c.client == nil {
		return Entry{}, false, nil
	}

	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("idempotency cache get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is treated as a miss; the ledger decides.
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Set stores the entry under the idempotency key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, entry Entry) error {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("idempotency cache encode: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency cache set: %w", err)
	}
	return nil
}
