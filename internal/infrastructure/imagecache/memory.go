package imagecache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache implements BlobCache using an in-memory map.
// This is suitable for single-instance deployments and testing
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	stopChan   chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewMemoryCache creates a new in-memory cache holding at most maxEntries
// images (0 means unbounded). It starts a background goroutine to clean up
// expired entries.
func NewMemoryCache(maxEntries int) *MemoryCache {
	c := &MemoryCache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		stopChan:   make(chan struct{}),
	}
	c.wg.Add(1)
	go c.cleanupLoop()
	return c
}

// Get returns cached bytes that have not expired
func (c *MemoryCache) Get(ctx context.Context, url string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[cacheKey(url)]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set stores bytes with a TTL, evicting the entry closest to expiry when full
func (c *MemoryCache) Set(ctx context.Context, url string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(url)
	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOne()
	}
	c.entries[key] = entry{data: data, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) evictOne() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *MemoryCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// Size returns the number of entries in the cache (for testing/monitoring)
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ensure MemoryCache implements BlobCache
var _ BlobCache = (*MemoryCache)(nil)
