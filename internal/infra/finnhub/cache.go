package finnhub

import (
	"sync"
	"time"
)

// DefaultCacheWindow is how long a successful response is reused
const DefaultCacheWindow = 5 * time.Second

type cacheEntry struct {
	payload   []byte
	fetchedAt time.Time
}

// Cache memoizes raw responses by full request URL.
// Expiry is lazy: stale entries stay in the map until overwritten.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	window  time.Duration
	now     func() time.Time
}

// NewCache creates a cache with the given freshness window.
// A nil clock defaults to time.Now.
func NewCache(window time.Duration, now func() time.Time) *Cache {
	if window <= 0 {
		window = DefaultCacheWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		window:  window,
		now:     now,
	}
}

// Get returns the payload stored under key if it is younger than the window
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.window {
		return nil, false
	}
	return e.payload, true
}

// Put stores payload under key stamped with the current time, replacing any prior entry
func (c *Cache) Put(key string, payload []byte) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{payload: payload, fetchedAt: c.now()}
	c.mu.Unlock()
}

// Len returns the number of stored entries, fresh or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
