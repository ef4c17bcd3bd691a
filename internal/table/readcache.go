package table

import "sync"

// readCache is a bounded cache of a record's human-readable formatted
// form (schema.Format), keyed by offset. Adapted from the teacher's
// CacheService: the same "bounded map guarded by a mutex" shape, with
// its adaptive LFU/LRU scoring dropped — there is no access-frequency
// pattern to adapt to here, records are read once per query match and
// the formatted string is only ever useful for that one response.
type readCache struct {
	maxEntries int

	mu      sync.Mutex
	entries map[int64]string
	order   []int64 // FIFO eviction order
}

func newReadCache(maxEntries int) *readCache {
	return &readCache{
		maxEntries: maxEntries,
		entries:    make(map[int64]string),
	}
}

func (c *readCache) get(offset int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[offset]
	return v, ok
}

func (c *readCache) put(offset int64, formatted string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[offset]; exists {
		c.entries[offset] = formatted
		return
	}

	for len(c.entries) >= c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[offset] = formatted
	c.order = append(c.order, offset)
}
