package gpu

import (
	"image/color"
	"testing"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/stretchr/testify/assert"

	"github.com/wallpipe/wallpipe/internal/texture"
)

func TestGLFormats(t *testing.T) {
	tests := []struct {
		name       string
		desc       *texture.Descriptor
		compressed bool
		internal   int32
		format     uint32
		xtype      uint32
	}{
		{"rgb", &texture.Descriptor{InternalFormat: texture.InternalRGB}, false, gl.RGB8, gl.RGBA, gl.UNSIGNED_BYTE},
		{"rgb compressed", &texture.Descriptor{InternalFormat: texture.InternalRGB}, true, gl.COMPRESSED_RGB, gl.RGBA, gl.UNSIGNED_BYTE},
		{"rgba compressed", &texture.Descriptor{InternalFormat: texture.InternalRGBA}, true, gl.COMPRESSED_RGBA, gl.RGBA, gl.UNSIGNED_BYTE},
		{"rgba", &texture.Descriptor{InternalFormat: texture.InternalRGBA}, false, gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE},
		{"rgba16 ignores compression", &texture.Descriptor{InternalFormat: texture.InternalRGBA16, Type: texture.TypeUint16}, true, gl.RGBA16, gl.RGBA, gl.UNSIGNED_SHORT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			internal, format, xtype := glFormats(tt.desc, tt.compressed)
			assert.Equal(t, tt.internal, internal)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, tt.xtype, xtype)
		})
	}
}

func TestCapsAtLeast(t *testing.T) {
	c := Caps{Major: 3, Minor: 3}
	assert.True(t, c.AtLeast(3, 3))
	assert.True(t, c.AtLeast(2, 1))
	assert.False(t, c.AtLeast(4, 0))
	assert.False(t, Caps{Major: 3, Minor: 2}.AtLeast(3, 3))
}

func TestRasterizeLines(t *testing.T) {
	img := rasterize([]string{"slot 1", "progress 0.50"})
	assert.Equal(t, overlayWidth, img.Bounds().Dx())
	assert.Equal(t, lineHeight*2+3, img.Bounds().Dy())

	lit := 0
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < 80; x++ {
			if img.At(x, y).(color.RGBA).R > 0 {
				lit++
			}
		}
	}
	assert.Greater(t, lit, 0)
}
