package cache

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// entry is a cached translation. TranslatedText is immutable once written;
// the remaining fields are eviction bookkeeping.
type entry struct {
	text         string
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int64
	expiresAt    time.Time
}

// Cache is a bounded store of translated text keyed by
// (source language, target language, normalized text). Capacity overflow
// evicts the least-recently-used entry regardless of TTL; an entry past its
// TTL behaves as a miss on read and is removed lazily.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *entry]
	ttl     time.Duration
	clock   func() time.Time
	log     *slog.Logger

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

func New(capacity int, ttl time.Duration, log *slog.Logger) (*Cache, error) {
	entries, err := lru.New[string, *entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c := &Cache{
		entries: entries,
		ttl:     ttl,
		clock:   time.Now,
		log:     log.With(slog.String("component", "translation-cache")),
	}
	meter := otel.Meter("github.com/babelcast-labs/babelcast-core/cache")
	if c.hits, err = meter.Int64Counter("babelcast.cache.hits"); err != nil {
		c.log.Warn("failed to create hit counter", slog.String("error", err.Error()))
	}
	if c.misses, err = meter.Int64Counter("babelcast.cache.misses"); err != nil {
		c.log.Warn("failed to create miss counter", slog.String("error", err.Error()))
	}
	return c, nil
}

// Key builds the cache key. Normalization is trim plus lowercase, so
// phrasings differing only in case or surrounding whitespace share an entry.
func Key(sourceLang, targetLang, text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	h := fnv.New64a()
	h.Write([]byte(normalized))
	return fmt.Sprintf("%s:%s:%016x", sourceLang, targetLang, h.Sum64())
}

// Get returns the cached translation for key, or ok=false on a miss.
// A present-but-expired entry counts as a miss and is dropped.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		c.countMiss(ctx)
		return "", false
	}
	now := c.clock()
	if now.After(e.expiresAt) {
		c.entries.Remove(key)
		c.countMiss(ctx)
		return "", false
	}
	e.lastAccessed = now
	e.accessCount++
	c.countHit(ctx)
	return e.text, true
}

// Put inserts or refreshes the translation for key.
func (c *Cache) Put(ctx context.Context, key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	c.entries.Add(key, &entry{
		text:         text,
		createdAt:    now,
		lastAccessed: now,
		accessCount:  1,
		expiresAt:    now.Add(c.ttl),
	})
}

// Len reports the number of resident entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *Cache) countHit(ctx context.Context) {
	if c.hits != nil {
		c.hits.Add(ctx, 1)
	}
}

func (c *Cache) countMiss(ctx context.Context) {
	if c.misses != nil {
		c.misses.Add(ctx, 1)
	}
}
