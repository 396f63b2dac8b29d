package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// fileDocument is the on-disk shape of the cache.
type fileDocument struct {
	Entries map[string]Entry `json:"entries"`
	Stats   Stats            `json:"stats"`
	SavedAt time.Time        `json:"saved_at"`
}

// Save writes the cache to its persistence file. A no-op when no path is
// configured.
func (c *Cache) Save() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	doc := fileDocument{
		Entries: make(map[string]Entry, c.lru.Len()),
		Stats:   c.stats,
		SavedAt: c.now(),
	}
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*lruItem)
		doc.Entries[item.key] = *item.entry
	}
	c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	// Write-then-rename so a crash mid-save never truncates the cache.
	tempPath := c.path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// load restores persisted entries, silently skipping any already past TTL.
// Dropped entries count as neither misses nor evictions.
func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode cache file: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats = doc.Stats

	type keyedEntry struct {
		key   string
		entry Entry
	}
	live := make([]keyedEntry, 0, len(doc.Entries))
	for key, entry := range doc.Entries {
		if c.expired(&entry) {
			continue
		}
		live = append(live, keyedEntry{key: key, entry: entry})
	}

	// The JSON map loses recency order; CreatedAt is the order that
	// survives. Oldest entries go in first so the newest end up at the
	// front, and anything past capacity drops from the old end.
	sort.Slice(live, func(i, j int) bool {
		return live[i].entry.CreatedAt.Before(live[j].entry.CreatedAt)
	})
	if len(live) > c.capacity {
		live = live[len(live)-c.capacity:]
	}
	for i := range live {
		stored := live[i].entry
		c.index[live[i].key] = c.lru.PushFront(&lruItem{key: live[i].key, entry: &stored})
	}
	return nil
}
