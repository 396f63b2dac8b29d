// Package cache provides the response cache that sits in front of the query
// pipeline. Keys combine the normalized question with the exact notebook
// target, entries age out after a TTL, and the least-recently-used entry is
// evicted when the cache is full.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultCapacity is the maximum number of entries kept by default.
	DefaultCapacity = 100

	// DefaultTTL is how long an answer stays usable.
	DefaultTTL = 24 * time.Hour

	// flushEvery bounds the durability-loss window: the cache persists after
	// every Nth write rather than on each one.
	flushEvery = 5
)

// Entry is one cached answer. Entries are owned by the cache; callers only
// ever see copies.
type Entry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
	HitCount  int       `json:"hit_count"`
}

// Stats tracks cache effectiveness over the life of the store, surviving
// restarts via the persistence file.
type Stats struct {
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	Evictions    int64 `json:"evictions"`
	TotalQueries int64 `json:"total_queries"`
}

// Cache is a TTL-bounded LRU store of question/answer pairs.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration

	// lru front = most recently used; elements carry *lruItem.
	lru    *list.List
	index  map[string]*list.Element
	stats  Stats
	path   string
	writes int

	now func() time.Time
}

type lruItem struct {
	key   string
	entry *Entry
}

// Options configures a Cache. Zero values fall back to defaults.
type Options struct {
	Capacity int
	TTL      time.Duration

	// Path enables persistence when non-empty. Entries already past TTL at
	// load time are dropped silently.
	Path string
}

// New creates a cache and, when a path is configured, loads any persisted
// entries that are still fresh.
func New(opts Options) (*Cache, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	c := &Cache{
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		lru:      list.New(),
		index:    make(map[string]*list.Element),
		path:     opts.Path,
		now:      time.Now,
	}

	if c.path != "" {
		if err := c.load(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Key derives the cache key for a question/target pair. The question is
// lower-cased and trimmed so trivially reworded lookups hit; the target is
// hashed exactly so distinct notebooks never collide.
func Key(question, target string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(normalized + "\x00" + target))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached answer for (question, target), promoting the entry
// to most-recently-used. Expired entries are dropped and reported as misses.
func (c *Cache) Get(question, target string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalQueries++

	elem, ok := c.index[Key(question, target)]
	if !ok {
		c.stats.Misses++
		return "", false
	}

	item := elem.Value.(*lruItem)
	if c.expired(item.entry) {
		// TTL expiry is not an eviction; the entry simply no longer exists.
		c.removeLocked(elem)
		c.stats.Misses++
		return "", false
	}

	item.entry.HitCount++
	c.lru.MoveToFront(elem)
	c.stats.Hits++
	return item.entry.Answer, true
}

// Set stores an answer. A new key at capacity evicts the least-recently-used
// entry first; overwriting an existing key never evicts.
func (c *Cache) Set(question, answer, target string) error {
	c.mu.Lock()

	key := Key(question, target)
	if elem, ok := c.index[key]; ok {
		item := elem.Value.(*lruItem)
		item.entry.Answer = answer
		item.entry.CreatedAt = c.now()
		c.lru.MoveToFront(elem)
	} else {
		if c.lru.Len() >= c.capacity {
			if oldest := c.lru.Back(); oldest != nil {
				c.removeLocked(oldest)
				c.stats.Evictions++
			}
		}
		entry := &Entry{
			Question:  question,
			Answer:    answer,
			Target:    target,
			CreatedAt: c.now(),
		}
		c.index[key] = c.lru.PushFront(&lruItem{key: key, entry: entry})
	}

	c.writes++
	flush := c.writes >= flushEvery
	if flush {
		c.writes = 0
	}
	c.mu.Unlock()

	if flush {
		return c.Save()
	}
	return nil
}

// Invalidate removes entries matching the given filters and persists the
// result. An empty question and target clears everything. When both filters
// are provided an entry matching either one is removed; see the package
// documentation for why OR semantics were chosen.
func (c *Cache) Invalidate(question, target string) (int, error) {
	c.mu.Lock()

	removed := 0
	if question == "" && target == "" {
		removed = c.lru.Len()
		c.lru.Init()
		c.index = make(map[string]*list.Element)
	} else {
		var victims []*list.Element
		for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
			entry := elem.Value.(*lruItem).entry
			if question != "" && entry.Question == question {
				victims = append(victims, elem)
				continue
			}
			if target != "" && entry.Target == target {
				victims = append(victims, elem)
			}
		}
		for _, elem := range victims {
			c.removeLocked(elem)
		}
		removed = len(victims)
	}
	c.mu.Unlock()

	if err := c.Save(); err != nil {
		return removed, err
	}
	return removed, nil
}

// CleanupExpired drops every entry past its TTL and persists the result.
func (c *Cache) CleanupExpired() (int, error) {
	c.mu.Lock()

	var victims []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if c.expired(elem.Value.(*lruItem).entry) {
			victims = append(victims, elem)
		}
	}
	for _, elem := range victims {
		c.removeLocked(elem)
	}
	removed := len(victims)
	c.mu.Unlock()

	if err := c.Save(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Entries returns copies of all live entries, most recently used first.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry, 0, c.lru.Len())
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		entries = append(entries, *elem.Value.(*lruItem).entry)
	}
	return entries
}

func (c *Cache) expired(e *Entry) bool {
	return c.now().Sub(e.CreatedAt) > c.ttl
}

func (c *Cache) removeLocked(elem *list.Element) {
	item := elem.Value.(*lruItem)
	c.lru.Remove(elem)
	delete(c.index, item.key)
}
