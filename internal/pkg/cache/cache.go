// Package cache holds pre-serialized todo list responses in redis. Keys
// embed a per-user version counter, so invalidating a user costs a single
// INCR instead of scanning for every cached query variant.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	listKeyPrefix    = "todoapp:todos:list:"
	versionKeyPrefix = "todoapp:todos:ver:"
)

// ListCache is best-effort: every redis failure degrades to a miss or a
// no-op, never to a request failure. A nil *ListCache is valid and inert.
type ListCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewListCache(rdb *redis.Client, ttl time.Duration) *ListCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ListCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached response body for the user's query, if fresh,
// along with the exact storage key a later Set must reuse. Resolving the key
// once per request pins the user's version at read time: a Set racing a
// concurrent Invalidate lands under the old version and is never read again.
func (c *ListCache) Get(ctx context.Context, userID, query string) ([]byte, string, bool) {
	if c == nil || c.rdb == nil {
		return nil, "", false
	}
	key, err := c.key(ctx, userID, query)
	if err != nil {
		return nil, "", false
	}
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, key, false
	}
	return payload, key, true
}

// Set stores a serialized response body under a key resolved by Get.
func (c *ListCache) Set(ctx context.Context, key string, payload []byte) {
	if c == nil || c.rdb == nil || key == "" || len(payload) == 0 {
		return
	}
	_ = c.rdb.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate drops every cached list for the user by bumping their version.
// Called after each create/update/delete.
func (c *ListCache) Invalidate(ctx context.Context, userID string) {
	if c == nil || c.rdb == nil {
		return
	}
	_ = c.rdb.Incr(ctx, versionKeyPrefix+userID).Err()
}

func (c *ListCache) key(ctx context.Context, userID, query string) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKeyPrefix+userID).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return listKeyPrefix + userID + ":" + strconv.FormatInt(ver, 10) + ":" + hashQuery(query), nil
}

func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}
