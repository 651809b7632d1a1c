package image

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-assistant/internal/pkg/common"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h)))
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	return cfg.Width, cfg.Height
}

func TestNormalize(t *testing.T) {
	svc := NewService(10<<20, 512, 100)

	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape larger than box", 1024, 768, 512, 384},
		{"portrait larger than box", 600, 1200, 256, 512},
		{"one side over", 800, 100, 512, 64},
		{"exactly at limit", 512, 512, 512, 512},
		{"smaller than box is not upscaled", 300, 200, 300, 200},
		{"tiny", 1, 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := svc.Normalize(encodePNG(t, tt.w, tt.h))
			require.NoError(t, err)
			w, h := decodedSize(t, out)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.LessOrEqual(t, max(w, h), 512)
		})
	}
}

func TestNormalizeFormats(t *testing.T) {
	svc := NewService(10<<20, 512, 85)

	t.Run("jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, solid(700, 70), nil))
		out, err := svc.Normalize(buf.Bytes())
		require.NoError(t, err)
		w, h := decodedSize(t, out)
		assert.Equal(t, 512, w)
		assert.Equal(t, 51, h)
	})

	t.Run("animated gif keeps first frame only", func(t *testing.T) {
		palette := color.Palette{color.Black, color.White}
		frame := image.NewPaletted(image.Rect(0, 0, 40, 20), palette)
		anim := &gif.GIF{Image: []*image.Paletted{frame, frame}, Delay: []int{0, 0}}
		var buf bytes.Buffer
		require.NoError(t, gif.EncodeAll(&buf, anim))

		out, err := svc.Normalize(buf.Bytes())
		require.NoError(t, err)
		w, h := decodedSize(t, out)
		assert.Equal(t, 40, w)
		assert.Equal(t, 20, h)
	})
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	svc := NewService(1024, 512, 100)

	for name, data := range map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("definitely not an image"),
		"truncated": encodePNG(t, 64, 64)[:40],
		"too large": make([]byte, 2048),
	} {
		t.Run(name, func(t *testing.T) {
			out, err := svc.Normalize(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrImageDecode))
			assert.Nil(t, out)
		})
	}
}

func TestFitWithin(t *testing.T) {
	w, h := FitWithin(5000, 10, 512)
	assert.Equal(t, 512, w)
	assert.Equal(t, 1, h)

	w, h = FitWithin(100, 100, 0)
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)
}
