// Package fonts loads the embedded Go font family used on printed labels.
// Parsed fonts are shared; faces are not safe for concurrent use, so every
// render creates its own through a FaceCache.
package fonts

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Weight selects a font from the family
type Weight int

const (
	Regular Weight = iota
	Bold
)

var (
	loadOnce sync.Once
	loaded   map[Weight]*opentype.Font
	loadErr  error
)

func load() (map[Weight]*opentype.Font, error) {
	loadOnce.Do(func() {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			loadErr = fmt.Errorf("parse regular font: %w", err)
			return
		}
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			loadErr = fmt.Errorf("parse bold font: %w", err)
			return
		}
		loaded = map[Weight]*opentype.Font{Regular: regular, Bold: bold}
	})
	return loaded, loadErr
}

// NewFace creates a face of the given pixel size
func NewFace(w Weight, pixels float64) (font.Face, error) {
	fs, err := load()
	if err != nil {
		return nil, err
	}
	f, ok := fs[w]
	if !ok {
		f = fs[Regular]
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    pixels,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

type faceKey struct {
	weight Weight
	pixels int
}

// FaceCache hands out faces for a single render. It must not be shared
// between goroutines.
type FaceCache struct {
	faces map[faceKey]font.Face
}

// NewFaceCache creates an empty cache
func NewFaceCache() *FaceCache {
	return &FaceCache{faces: make(map[faceKey]font.Face)}
}

// Face returns a cached face, rounding the size to whole pixels
func (c *FaceCache) Face(w Weight, pixels float64) (font.Face, error) {
	px := int(pixels + 0.5)
	if px < 1 {
		px = 1
	}
	key := faceKey{weight: w, pixels: px}
	if f, ok := c.faces[key]; ok {
		return f, nil
	}
	f, err := NewFace(w, float64(px))
	if err != nil {
		return nil, err
	}
	c.faces[key] = f
	return f, nil
}

// Close releases every cached face
func (c *FaceCache) Close() {
	for k, f := range c.faces {
		_ = f.Close()
		delete(c.faces, k)
	}
}
