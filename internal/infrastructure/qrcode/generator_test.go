package qrcode

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackingContent = "https://track.example.com/q/S3f2b8c1e-9d4a-4b6f-8e21-5a7c9d0e1f23"

func decode(t *testing.T, img image.Image) string {
	t.Helper()
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	require.NoError(t, err)
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
	require.NoError(t, err)
	return result.GetText()
}

func solidLogo(side int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestGenerator_RoundTrip(t *testing.T) {
	g := NewGenerator()

	tests := []struct {
		name string
		opts Options
	}{
		{"plain", Options{Size: 400}},
		{"logo at default ratio", Options{Size: 400, Logo: solidLogo(64, color.RGBA{R: 200, G: 30, B: 60, A: 255})}},
		{"glyph at default ratio", Options{Size: 400, Glyph: "F"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := g.Generate(trackingContent, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.opts.Size, img.Bounds().Dx())
			assert.Equal(t, tt.opts.Size, img.Bounds().Dy())
			assert.Equal(t, trackingContent, decode(t, img))
		})
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	g := NewGenerator()
	opts := Options{Size: 300, Glyph: "F"}

	a, err := g.Generate(trackingContent, opts)
	require.NoError(t, err)
	b, err := g.Generate(trackingContent, opts)
	require.NoError(t, err)

	assert.Equal(t, a.(*image.RGBA).Pix, b.(*image.RGBA).Pix)
}

func TestGenerator_QuietZoneIsWhite(t *testing.T) {
	img, err := NewGenerator().Generate(trackingContent, Options{Size: 400})
	require.NoError(t, err)

	for i := 0; i < 400; i++ {
		r, g, b, _ := img.At(i, 0).RGBA()
		require.Equal(t, uint32(0xffff), r&g&b, "top border pixel %d", i)
		r, g, b, _ = img.At(0, i).RGBA()
		require.Equal(t, uint32(0xffff), r&g&b, "left border pixel %d", i)
	}
}

func TestGenerator_RejectsBadInput(t *testing.T) {
	g := NewGenerator()

	_, err := g.Generate("", Options{Size: 200})
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = g.Generate(trackingContent, Options{Size: 10})
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = g.Generate(trackingContent, Options{Size: -1})
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = g.Generate(trackingContent, Options{Size: 200, Glyph: "F", LogoSizeRatio: 0.5})
	assert.ErrorIs(t, err, ErrInvalidLogoSize)

	_, err = g.Generate(strings.Repeat("x", 5000), Options{Size: 400})
	assert.Error(t, err)
}

func TestGenerator_DefaultSize(t *testing.T) {
	img, err := NewGenerator().Generate("P1", Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())
}
