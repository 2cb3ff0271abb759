// Package imagecache prefetches label thumbnails and logos. Fetches fan out
// one goroutine per distinct URL; anything that fails to load is left out of
// the result and the label falls back to a placeholder.
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// BlobCache stores raw image bytes by URL
type BlobCache interface {
	// Get returns the cached bytes and whether they were found
	Get(ctx context.Context, url string) ([]byte, bool, error)
	// Set stores bytes with a TTL
	Set(ctx context.Context, url string, data []byte, ttl time.Duration) error
}

// cacheKey hashes a URL to a fixed-length key
func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
