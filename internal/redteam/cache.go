package redteam

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"caseforge/internal/util/jsonutil"
)

// ContentHash returns the digest of the exact analysis input payload,
// computed over canonical JSON so that key order never defeats the cache.
func ContentHash(v any) string {
	b, err := jsonutil.Canonical(v)
	if err != nil {
		b, _ = json.Marshal(v)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Entry is one cached analysis result.
type Entry struct {
	Result    json.RawMessage
	CreatedAt time.Time
}

// Cache avoids repeated analysis of unchanged content. Concurrent writes for
// the same key are harmless last-write-wins duplicates, so it needs no lock
// beyond the LRU's own.
type Cache struct {
	lru *lru.Cache[string, Entry]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = 512
	}
	c, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Key builds the cache key from content hash, analysis type, and focus areas.
func Key(contentHash, analysisType string, focusAreas ...string) string {
	parts := append([]string{contentHash, analysisType}, focusAreas...)
	return strings.Join(parts, "|")
}

func (c *Cache) Get(key string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	return c.lru.Get(key)
}

func (c *Cache) Put(key string, result json.RawMessage) {
	if c == nil {
		return
	}
	c.lru.Add(key, Entry{Result: result, CreatedAt: time.Now()})
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
