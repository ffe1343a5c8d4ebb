package gpu

import (
	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/wallpipe/wallpipe/internal/texture"
)

// glFormats maps a descriptor to the internal format, pixel format and
// component type arguments of TexImage2D.
func glFormats(desc *texture.Descriptor, compressed bool) (internal int32, format, xtype uint32) {
	switch desc.InternalFormat {
	case texture.InternalRGB:
		internal = gl.RGB8
		if compressed {
			internal = gl.COMPRESSED_RGB
		}
	case texture.InternalRGBA16:
		internal = gl.RGBA16
	default:
		internal = gl.RGBA8
		if compressed {
			internal = gl.COMPRESSED_RGBA
		}
	}

	format = gl.RGBA

	xtype = gl.UNSIGNED_BYTE
	if desc.Type == texture.TypeUint16 {
		xtype = gl.UNSIGNED_SHORT
	}
	return internal, format, xtype
}
