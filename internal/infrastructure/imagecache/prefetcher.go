package imagecache

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFetchTimeout = 5 * time.Second
	defaultTTL          = 24 * time.Hour
	defaultMaxBytes     = 4 << 20
)

// Config contains configuration for the prefetcher
type Config struct {
	// Timeout bounds one image download (default: 5s)
	Timeout time.Duration
	// TTL of cached image bytes (default: 24h)
	TTL time.Duration
	// MaxBytes caps one image download (default: 4 MiB)
	MaxBytes int64
	// Logger for fetch failures
	Logger *zap.Logger
}

// Prefetcher downloads and decodes images concurrently
type Prefetcher struct {
	config *Config
	http   *http.Client
	cache  BlobCache
	logger *zap.Logger
}

// NewPrefetcher creates a new prefetcher; cache may be nil
func NewPrefetcher(config *Config, cache BlobCache) *Prefetcher {
	if config == nil {
		config = &Config{}
	}
	if config.Timeout == 0 {
		config.Timeout = defaultFetchTimeout
	}
	if config.TTL == 0 {
		config.TTL = defaultTTL
	}
	if config.MaxBytes == 0 {
		config.MaxBytes = defaultMaxBytes
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prefetcher{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		cache:  cache,
		logger: logger,
	}
}

// Prefetch loads every distinct URL and returns the images that decoded.
// It waits for all fetches; failures are logged and omitted, never returned.
func (p *Prefetcher) Prefetch(ctx context.Context, urls []string) map[string]image.Image {
	result := make(map[string]image.Image, len(urls))
	var mu sync.Mutex
	var g errgroup.Group

	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}

		url := u
		g.Go(func() error {
			img, err := p.load(ctx, url)
			if err != nil {
				p.logger.Warn("image prefetch failed, using placeholder",
					zap.String("url", url), zap.Error(err))
				return nil
			}
			mu.Lock()
			result[url] = img
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return result
}

func (p *Prefetcher) load(ctx context.Context, url string) (image.Image, error) {
	if p.cache != nil {
		if data, ok, err := p.cache.Get(ctx, url); err == nil && ok {
			if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
				return img, nil
			}
		}
	}

	data, err := p.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if p.cache != nil {
		if err := p.cache.Set(ctx, url, data, p.config.TTL); err != nil {
			p.logger.Debug("image cache write failed", zap.String("url", url), zap.Error(err))
		}
	}
	return img, nil
}

func (p *Prefetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/png,image/jpeg,image/webp,image/gif")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, p.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > p.config.MaxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", p.config.MaxBytes)
	}
	return data, nil
}
