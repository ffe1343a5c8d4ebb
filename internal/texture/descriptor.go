// Package texture turns encoded image payloads into Descriptors: decoded
// pixel buffers plus the format metadata the GPU upload needs.
package texture

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// InternalFormat is the storage the texture should be allocated with.
type InternalFormat int

const (
	InternalRGB InternalFormat = iota
	InternalRGBA
	InternalRGBA16
)

func (f InternalFormat) String() string {
	switch f {
	case InternalRGB:
		return "rgb"
	case InternalRGBA:
		return "rgba"
	case InternalRGBA16:
		return "rgba16"
	}
	return "unknown"
}

// PixelType is the component type of Descriptor.Pixels.
type PixelType int

const (
	TypeUint8 PixelType = iota
	TypeUint16
)

// Descriptor owns one decoded image with RGBA ordered Pixels. It is created
// on the ingestion side and handed to the render side; whoever holds it last
// calls Release.
type Descriptor struct {
	ID             uuid.UUID
	Width          int
	Height         int
	BytesPerPixel  int
	Size           int
	InternalFormat InternalFormat
	Type           PixelType
	// Kind is the sniffed container name, e.g. "png".
	Kind   string
	Pixels []byte

	released atomic.Int32
}

// Valid reports whether the pixel buffer matches the declared geometry.
func (d *Descriptor) Valid() bool {
	if d == nil || d.Pixels == nil || d.Width <= 0 || d.Height <= 0 {
		return false
	}
	return d.Size == d.Width*d.Height*d.BytesPerPixel && len(d.Pixels) == d.Size
}

// Release drops the pixel buffer. Only the first call has an effect; it
// returns false for every later call.
func (d *Descriptor) Release() bool {
	if !d.released.CompareAndSwap(0, 1) {
		return false
	}
	d.Pixels = nil
	return true
}

func (d *Descriptor) Released() bool {
	return d.released.Load() != 0
}
