package texture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmptyPayload      = errors.New("empty image payload")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrCorrupt           = errors.New("corrupt image")
	ErrTooLarge          = errors.New("image exceeds max texture size")
)

// supported maps sniffed extensions to the codecs registered above.
var supported = map[string]bool{
	"png":  true,
	"jpg":  true,
	"gif":  true,
	"bmp":  true,
	"tif":  true,
	"webp": true,
}

// Decode turns an encoded image into a Descriptor. maxSize bounds both
// dimensions; zero disables the check.
func Decode(data []byte, maxSize int) (*Descriptor, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return nil, fmt.Errorf("%w: unrecognized %d byte payload", ErrUnsupportedFormat, len(data))
	}
	if !supported[kind.Extension] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind.MIME.Value)
	}

	// Check the header first so oversized images are never fully decoded.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s header: %v", ErrCorrupt, kind.Extension, err)
	}
	if err := checkSize(cfg.Width, cfg.Height, maxSize); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, kind.Extension, err)
	}
	b := img.Bounds()
	if err := checkSize(b.Dx(), b.Dy(), maxSize); err != nil {
		return nil, err
	}

	desc := fromImage(img)
	desc.Kind = kind.Extension
	return desc, nil
}

func checkSize(w, h, maxSize int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrCorrupt, w, h)
	}
	if maxSize > 0 && (w > maxSize || h > maxSize) {
		return fmt.Errorf("%w: %dx%d, limit %d", ErrTooLarge, w, h, maxSize)
	}
	return nil
}

func fromImage(img image.Image) *Descriptor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	desc := &Descriptor{
		ID:     uuid.New(),
		Width:  w,
		Height: h,
	}

	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		dst := image.NewNRGBA64(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		toNativeEndian(dst.Pix)
		desc.Pixels = dst.Pix
		desc.BytesPerPixel = 8
		desc.InternalFormat = InternalRGBA16
		desc.Type = TypeUint16
	default:
		desc.Pixels = nrgbaPixels(img)
		desc.BytesPerPixel = 4
		desc.InternalFormat = InternalRGBA
		if isOpaque(img) {
			desc.InternalFormat = InternalRGB
		}
		desc.Type = TypeUint8
	}
	desc.Size = w * h * desc.BytesPerPixel
	return desc
}

func nrgbaPixels(img image.Image) []byte {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == b.Dx()*4 {
		return n.Pix[:b.Dx()*b.Dy()*4]
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst.Pix
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// toNativeEndian rewrites big endian 16 bit components, as stored by the
// image package, in host order for an UNSIGNED_SHORT upload.
func toNativeEndian(pix []byte) {
	for i := 0; i+1 < len(pix); i += 2 {
		binary.NativeEndian.PutUint16(pix[i:], binary.BigEndian.Uint16(pix[i:]))
	}
}
