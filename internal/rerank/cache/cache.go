// Package cache holds processed rerank results in memory so that repeated
// (query, document set) pairs do not hit the remote backend again.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
	"go.uber.org/zap"
)

// Entry is a cached, fully processed result list
type Entry struct {
	// Results are sorted by descending score and were stored before any
	// threshold or topK was applied
	Results    []types.ScoredResult
	InsertedAt time.Time
}

// Stats is a snapshot of cache counters
type Stats struct {
	Size        int   `json:"size"`
	MaxEntries  int   `json:"max_entries"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Expirations int64 `json:"expirations"`
	Evictions   int64 `json:"evictions"`
}

// Option configures a ResultCache
type Option func(*ResultCache)

// WithMaxEntries overrides the entry bound
func WithMaxEntries(n int) Option {
	return func(c *ResultCache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(lgr *logger.Logger) Option {
	return func(c *ResultCache) {
		if lgr != nil {
			c.logger = lgr
		}
	}
}

// ResultCache is a bounded, TTL-checked, insertion-ordered result cache.
// When full, the entry inserted least recently is evicted; reads never
// change the eviction order. All operations are serialized.
type ResultCache struct {
	mu         sync.Mutex
	entries    *simplelru.LRU[string, *Entry]
	maxEntries int
	now        func() time.Time
	logger     *logger.Logger

	hits        int64
	misses      int64
	expirations int64
	evictions   int64
}

// New creates an empty result cache
func New(opts ...Option) *ResultCache {
	c := &ResultCache{
		maxEntries: types.DefaultMaxCacheEntries,
		now:        time.Now,
		logger:     logger.L(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// only fails for a non-positive size, which WithMaxEntries rejects
	entries, _ := simplelru.NewLRU[string, *Entry](c.maxEntries, nil)
	c.entries = entries

	return c
}

// Get returns a copy of the cached results when the entry is younger than ttl.
// An expired entry is removed.
func (c *ResultCache) Get(key string, ttl time.Duration) ([]types.ScoredResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Peek(key)
	if !ok {
		c.misses++
		return nil, false
	}

	if c.now().Sub(entry.InsertedAt) >= ttl {
		c.entries.Remove(key)
		c.expirations++
		c.misses++
		c.logger.Debug("rerank cache entry expired",
			zap.String("cache_key", key),
			zap.Duration("ttl", ttl))
		return nil, false
	}

	c.hits++
	return types.CloneResults(entry.Results), true
}

// Peek is Get without touching counters or removing expired entries
func (c *ResultCache) Peek(key string, ttl time.Duration) ([]types.ScoredResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Peek(key)
	if !ok || c.now().Sub(entry.InsertedAt) >= ttl {
		return nil, false
	}
	return types.CloneResults(entry.Results), true
}

// Put stores results under key, replacing any previous entry. An overwrite
// counts as a fresh insertion.
func (c *ResultCache) Put(key string, results []types.ScoredResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &Entry{
		Results:    types.CloneResults(results),
		InsertedAt: c.now(),
	}
	if entry.Results == nil {
		entry.Results = []types.ScoredResult{}
	}

	if c.entries.Contains(key) {
		// re-inserting moves the key to the newest position
		c.entries.Remove(key)
	}
	if evicted := c.entries.Add(key, entry); evicted {
		c.evictions++
		c.logger.Debug("rerank cache evicted oldest entry",
			zap.Int("max_entries", c.maxEntries))
	}
}

// Clear drops every entry and resets the counters
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
	c.hits, c.misses, c.expirations, c.evictions = 0, 0, 0, 0
}

// Len returns the number of stored entries, expired ones included
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Contains reports whether key is stored, without checking its age
func (c *ResultCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Contains(key)
}

// Stats returns a snapshot of the counters
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:        c.entries.Len(),
		MaxEntries:  c.maxEntries,
		Hits:        c.hits,
		Misses:      c.misses,
		Expirations: c.expirations,
		Evictions:   c.evictions,
	}
}
