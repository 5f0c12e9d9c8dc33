package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Per-kind TTLs: longer for data that is more expensive to recompute and
// more stable.
const (
	TTLEmbedding  = time.Hour
	TTLSearch     = 30 * time.Minute
	TTLRAG        = 2 * time.Hour
	TTLChunkBatch = 24 * time.Hour
)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Cache is an advisory in-process KV store. A nil *Cache is valid and
// behaves as a permanent miss, so every consumer works identically with
// caching disabled.
type Cache struct {
	lru    *expirable.LRU[string, entry]
	hits   atomic.Int64
	misses atomic.Int64
}

type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

func New(size int) *Cache {
	if size <= 0 {
		size = 10000
	}
	// Entries carry their own expiry; the LRU ttl is only a backstop at the
	// longest kind ttl.
	return &Cache{
		lru: expirable.NewLRU[string, entry](size, nil, TTLChunkBatch),
	}
}

// Key builds a deterministic cache key: identical logical input always
// hashes identically. Parts are joined with a separator that cannot occur
// in normalized inputs, so ("a","bc") never collides with ("ab","c").
func Key(op string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(op))
	for _, part := range parts {
		h.Write([]byte{0x1f})
		h.Write([]byte(strings.TrimSpace(part)))
	}
	return op + ":" + hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	item, ok := c.lru.Get(key)
	if !ok || time.Now().After(item.expiresAt) {
		if ok {
			c.lru.Remove(key)
		}
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return item.payload, true
}

func (c *Cache) Set(key string, payload []byte, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}
	c.lru.Add(key, entry{payload: payload, expiresAt: time.Now().Add(ttl)})
}

// Clear removes all entries whose key starts with prefix; an empty prefix
// purges everything.
func (c *Cache) Clear(prefix string) int {
	if c == nil {
		return 0
	}
	removed := 0
	for _, key := range c.lru.Keys() {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			if c.lru.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.lru.Len(),
	}
}
