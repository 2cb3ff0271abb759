// Package qrcode renders scannable QR code images with an optional brand
// mark in the center. Codes are always encoded at error correction level H
// so the occluded center stays recoverable.
package qrcode

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/erp/labelprint/internal/infrastructure/fonts"
	"github.com/fogleman/gg"
)

const (
	// DefaultLogoSizeRatio is the side of the center plate relative to the image side
	DefaultLogoSizeRatio = 0.22
	// MaxLogoSizeRatio keeps the occluded area well inside the level H budget
	MaxLogoSizeRatio = 0.30
	// QuietZoneModules is the white border required around the symbol
	QuietZoneModules = 4
	// DefaultSize is used when Options.Size is zero
	DefaultSize = 512
)

// Errors returned for input the generator refuses to draw
var (
	ErrEmptyContent    = errors.New("qrcode: content is empty")
	ErrInvalidSize     = errors.New("qrcode: size is too small for the content")
	ErrInvalidLogoSize = errors.New("qrcode: logo size ratio out of range")
)

// Options controls one generated image
type Options struct {
	// Size is the side of the square output in pixels
	Size int
	// Logo is drawn on a white plate in the center when set
	Logo image.Image
	// Glyph is drawn instead when Logo is nil, e.g. a store initial
	Glyph string
	// LogoSizeRatio bounds the plate; zero selects DefaultLogoSizeRatio
	LogoSizeRatio float64
}

// Generator produces QR code images. It holds no state and is safe for concurrent use.
type Generator struct {
	foreground color.Color
	background color.Color
}

// NewGenerator creates a generator drawing black modules on white
func NewGenerator() *Generator {
	return &Generator{foreground: color.Black, background: color.White}
}

// Generate encodes content and returns a square image. Identical inputs give
// identical pixels.
func (g *Generator) Generate(content string, opts Options) (image.Image, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	size := opts.Size
	if size == 0 {
		size = DefaultSize
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	ratio := opts.LogoSizeRatio
	if ratio == 0 {
		ratio = DefaultLogoSizeRatio
	}
	if ratio < 0 || ratio > MaxLogoSizeRatio {
		return nil, fmt.Errorf("%w: %.2f", ErrInvalidLogoSize, ratio)
	}

	code, err := qr.Encode(content, qr.H, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode: %w", err)
	}

	modules := code.Bounds().Dx()
	moduleSize := size / (modules + 2*QuietZoneModules)
	if moduleSize < 1 {
		return nil, fmt.Errorf("%w: %d px for %d modules", ErrInvalidSize, size, modules)
	}
	symbolSide := moduleSize * modules
	scaled, err := barcode.Scale(code, symbolSide, symbolSide)
	if err != nil {
		return nil, fmt.Errorf("qrcode: scale: %w", err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(g.background), image.Point{}, draw.Src)
	offset := (size - symbolSide) / 2
	draw.Draw(canvas, image.Rect(offset, offset, offset+symbolSide, offset+symbolSide),
		scaled, scaled.Bounds().Min, draw.Src)

	if opts.Logo == nil && opts.Glyph == "" {
		return canvas, nil
	}
	if err := g.overlay(canvas, opts, ratio); err != nil {
		return nil, err
	}
	return canvas, nil
}

// overlay draws the brand plate centered on the symbol
func (g *Generator) overlay(canvas *image.RGBA, opts Options, ratio float64) error {
	size := float64(canvas.Bounds().Dx())
	plate := math.Floor(size * ratio)
	if plate < 1 {
		return nil
	}
	cx, cy := size/2, size/2

	dc := gg.NewContextForRGBA(canvas)
	dc.SetColor(g.background)
	dc.DrawRoundedRectangle(cx-plate/2, cy-plate/2, plate, plate, plate*0.12)
	dc.Fill()

	inner := plate * 0.84
	if opts.Logo != nil {
		b := opts.Logo.Bounds()
		w, h := float64(b.Dx()), float64(b.Dy())
		if w == 0 || h == 0 {
			return nil
		}
		s := inner / math.Max(w, h)
		dc.Push()
		dc.Translate(cx-w*s/2, cy-h*s/2)
		dc.Scale(s, s)
		dc.DrawImage(opts.Logo, -b.Min.X, -b.Min.Y)
		dc.Pop()
		return nil
	}

	face, err := fonts.NewFace(fonts.Bold, inner*0.8)
	if err != nil {
		return fmt.Errorf("qrcode: glyph font: %w", err)
	}
	defer face.Close()
	dc.SetFontFace(face)
	dc.SetColor(g.foreground)
	dc.DrawStringAnchored(opts.Glyph, cx, cy, 0.5, 0.38)
	return nil
}
