package imagecache

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TieredCache reads through a local L1 and a shared L2 cache.
// L2 failures are logged and treated as misses.
type TieredCache struct {
	l1     BlobCache
	l2     BlobCache
	logger *zap.Logger

	l1Hits atomic.Int64
	l2Hits atomic.Int64
	misses atomic.Int64
}

// NewTieredCache creates a new tiered cache
func NewTieredCache(l1, l2 BlobCache, logger *zap.Logger) *TieredCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredCache{l1: l1, l2: l2, logger: logger}
}

// Get checks L1 then L2, promoting L2 hits into L1
func (c *TieredCache) Get(ctx context.Context, url string) ([]byte, bool, error) {
	if data, ok, _ := c.l1.Get(ctx, url); ok {
		c.l1Hits.Add(1)
		return data, true, nil
	}
	data, ok, err := c.l2.Get(ctx, url)
	if err != nil {
		c.logger.Warn("shared image cache read failed", zap.String("url", url), zap.Error(err))
	}
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	c.l2Hits.Add(1)
	_ = c.l1.Set(ctx, url, data, 10*time.Minute)
	return data, true, nil
}

// Set writes both tiers
func (c *TieredCache) Set(ctx context.Context, url string, data []byte, ttl time.Duration) error {
	_ = c.l1.Set(ctx, url, data, ttl)
	if err := c.l2.Set(ctx, url, data, ttl); err != nil {
		c.logger.Warn("shared image cache write failed", zap.String("url", url), zap.Error(err))
	}
	return nil
}

// Stats returns hit counters for monitoring
func (c *TieredCache) Stats() (l1Hits, l2Hits, misses int64) {
	return c.l1Hits.Load(), c.l2Hits.Load(), c.misses.Load()
}

// Ensure TieredCache implements BlobCache
var _ BlobCache = (*TieredCache)(nil)
