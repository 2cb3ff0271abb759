package imagecache

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	data := pngBytes(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(data)
	})
	mux.HandleFunc("/other.png", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(data)
	})
	mux.HandleFunc("/garbage.png", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("not an image"))
	})
	mux.HandleFunc("/slow.png", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write(data)
	})
	return httptest.NewServer(mux)
}

func TestPrefetcher_PartialResultsTolerated(t *testing.T) {
	var hits atomic.Int64
	server := imageServer(t, &hits)
	defer server.Close()

	p := NewPrefetcher(&Config{Timeout: 100 * time.Millisecond, Logger: zaptest.NewLogger(t)}, nil)
	urls := []string{
		server.URL + "/ok.png",
		server.URL + "/missing.png",
		server.URL + "/garbage.png",
		server.URL + "/slow.png",
		server.URL + "/other.png",
		"",
		server.URL + "/ok.png",
	}

	images := p.Prefetch(context.Background(), urls)

	require.Len(t, images, 2)
	assert.Equal(t, 8, images[server.URL+"/ok.png"].Bounds().Dx())
	assert.Contains(t, images, server.URL+"/other.png")
	assert.Equal(t, int64(4), hits.Load(), "duplicate URLs are fetched once")
}

func TestPrefetcher_UsesCache(t *testing.T) {
	var hits atomic.Int64
	server := imageServer(t, &hits)
	defer server.Close()

	cache := NewMemoryCache(0)
	defer cache.Close()
	p := NewPrefetcher(nil, cache)
	url := server.URL + "/ok.png"

	first := p.Prefetch(context.Background(), []string{url})
	second := p.Prefetch(context.Background(), []string{url})

	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Equal(t, int64(1), hits.Load())
	assert.Equal(t, 1, cache.Size())
}

func TestPrefetcher_RejectsOversizedImages(t *testing.T) {
	var hits atomic.Int64
	server := imageServer(t, &hits)
	defer server.Close()

	p := NewPrefetcher(&Config{MaxBytes: 10}, nil)
	assert.Empty(t, p.Prefetch(context.Background(), []string{server.URL + "/ok.png"}))
}

func TestMemoryCache_ExpiryAndEviction(t *testing.T) {
	c := NewMemoryCache(2)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Hour))

	assert.Equal(t, 2, c.Size())
	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok, "entry closest to expiry is evicted")

	require.NoError(t, c.Set(ctx, "d", []byte("4"), -time.Second))
	_, ok, _ = c.Get(ctx, "d")
	assert.False(t, ok)
	c.cleanup()
	assert.Equal(t, 1, c.Size())

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestTieredCache_PromotesL2Hits(t *testing.T) {
	l1 := NewMemoryCache(0)
	defer l1.Close()
	l2 := NewMemoryCache(0)
	defer l2.Close()
	ctx := context.Background()
	require.NoError(t, l2.Set(ctx, "u", []byte("x"), time.Hour))

	c := NewTieredCache(l1, l2, zaptest.NewLogger(t))

	data, ok, err := c.Get(ctx, "u")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("x"), data)
	_, ok, _ = c.Get(ctx, "u")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "missing")
	assert.False(t, ok)

	l1Hits, l2Hits, misses := c.Stats()
	assert.Equal(t, int64(1), l1Hits)
	assert.Equal(t, int64(1), l2Hits)
	assert.Equal(t, int64(1), misses)

	require.NoError(t, c.Set(ctx, "v", []byte("y"), time.Hour))
	_, ok, _ = l2.Get(ctx, "v")
	assert.True(t, ok)
}
