// Package resultcache caches completed sweep results keyed by run ID, so
// a repeated query for a run's outcome (spec §4.7's Score output) does not
// re-run the sweep. Adapted from pkg/search/cache.go's LRUCache: the same
// list+map LRU structure, generation of cache keys swapped from vector/text
// query hashes to google/uuid run identifiers.
package resultcache

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efficomp/hpknn/pkg/knn"
)

// RunKey identifies one completed sweep run.
type RunKey string

// NewRunKey generates a fresh, unique run key.
func NewRunKey() RunKey {
	return RunKey(uuid.NewString())
}

// LRUCache is a thread-safe, optionally time-limited least-recently-used
// cache of Result values.
type LRUCache struct {
	capacity int
	ttl      time.Duration

	mu    sync.RWMutex
	cache map[RunKey]*list.Element
	lru   *list.List

	hits   int64
	misses int64
}

type cacheEntry struct {
	key       RunKey
	value     Result
	expiresAt time.Time
}

// Result is the cached outcome of one run: its best Candidate and the
// Score it produced against the test set.
type Result struct {
	Best  knn.Candidate
	Score knn.ScoreResult
}

// NewLRUCache creates a cache holding up to capacity entries. ttl of 0
// disables expiration.
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[RunKey]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Get retrieves a run's cached Result.
func (c *LRUCache) Get(key RunKey) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.cache[key]
	if !exists {
		c.misses++
		return Result{}, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		c.misses++
		return Result{}, false
	}

	c.lru.MoveToFront(elem)
	c.hits++
	return entry.value, true
}

// Put stores or replaces a run's Result.
func (c *LRUCache) Put(key RunKey, value Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.cache[key]; exists {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		if c.ttl > 0 {
			entry.expiresAt = time.Now().Add(c.ttl)
		}
		c.lru.MoveToFront(elem)
		return
	}

	entry := &cacheEntry{key: key, value: value}
	if c.ttl > 0 {
		entry.expiresAt = time.Now().Add(c.ttl)
	}

	elem := c.lru.PushFront(entry)
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		c.evictOldest()
	}
}

// Invalidate removes one run's cached Result, if present.
func (c *LRUCache) Invalidate(key RunKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.cache[key]; exists {
		c.removeElement(elem)
	}
}

// Clear empties the cache and resets its statistics.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[RunKey]*list.Element, c.capacity)
	c.lru.Init()
	c.hits = 0
	c.misses = 0
}

// Size returns the number of cached runs.
func (c *LRUCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Stats returns cache hit/miss counters.
func (c *LRUCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{Hits: c.hits, Misses: c.misses, Size: c.lru.Len(), HitRate: hitRate}
}

func (c *LRUCache) evictOldest() {
	if elem := c.lru.Back(); elem != nil {
		c.removeElement(elem)
	}
}

func (c *LRUCache) removeElement(elem *list.Element) {
	c.lru.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(c.cache, entry.key)
}

// Stats holds cache performance counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Size    int
	HitRate float64
}
