package transliterate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cache holds ranked suggestions for recent queries and collapses concurrent
// identical misses into one computation.
type Cache struct {
	lru   *expirable.LRU[string, []Suggestion]
	group singleflight.Group
}

// NewCache creates a cache of at most size entries, each living for ttl.
func NewCache(size int, ttl time.Duration) *Cache {
	return &Cache{
		lru: expirable.NewLRU[string, []Suggestion](size, nil, ttl),
	}
}

// CacheKey derives the cache key for a normalized query.
func CacheKey(text, mode string, limit int) string {
	sum := sha256.Sum256([]byte(text + "||" + mode + "||" + strconv.Itoa(limit)))
	return hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached suggestions for key.
func (c *Cache) Get(key string) ([]Suggestion, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return clone(v), true
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Load runs fn once per key among concurrent callers and caches a successful
// result. Each caller stops waiting when its own ctx is done; fn keeps running
// for the others.
func (c *Cache) Load(ctx context.Context, key string, fn func() ([]Suggestion, error)) ([]Suggestion, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]Suggestion)), nil
	}
}

func clone(s []Suggestion) []Suggestion {
	out := make([]Suggestion, len(s))
	copy(out, s)
	return out
}
