package render

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/wallpipe/wallpipe/internal/gpu"
	"github.com/wallpipe/wallpipe/internal/texture"
)

// RingSize is the number of texture slots. Three lets a transition read
// two slots while the next image lands in the third.
const RingSize = 3

// Ring cycles uploads through RingSize textures. next is the slot the next
// upload writes; the slot before it is on screen.
type Ring struct {
	dev        gpu.Device
	logger     *log.Logger
	textures   [RingSize]gpu.Texture
	staging    []gpu.Buffer
	compressed bool

	next     int
	uploaded int
}

// NewRing allocates the staging buffers when staging is requested and the
// device supports them. Texture objects are created on first use.
func NewRing(dev gpu.Device, logger *log.Logger, staging, compressed bool) *Ring {
	r := &Ring{dev: dev, logger: logger, compressed: compressed}
	if staging && dev.Caps().PixelBuffers {
		bufs, err := dev.CreateStagingBuffers(RingSize)
		if err != nil {
			logger.Warn("staging buffers unavailable, uploading directly", "err", err)
		} else {
			r.staging = bufs
		}
	}
	return r
}

// Upload writes desc into the next slot and returns it. desc is released
// whether or not the upload succeeds; on failure the ring does not move.
func (r *Ring) Upload(desc *texture.Descriptor) (int, error) {
	defer desc.Release()

	slot := r.next
	if r.textures[slot] == 0 {
		tex, err := r.dev.CreateTexture()
		if err != nil {
			return 0, fmt.Errorf("slot %d: %w", slot, err)
		}
		r.textures[slot] = tex
	}

	opts := gpu.UploadOptions{Compressed: r.compressed}
	if r.staging != nil {
		opts.Staging = r.staging[slot]
	}
	if err := r.dev.Upload(r.textures[slot], desc, opts); err != nil {
		return 0, fmt.Errorf("slot %d: %w", slot, err)
	}

	r.next = (r.next + 1) % RingSize
	r.uploaded++
	return slot, nil
}

// Displayed is the slot written by the most recent upload.
func (r *Ring) Displayed() int { return (r.next + RingSize - 1) % RingSize }

// Previous is the slot written by the upload before that.
func (r *Ring) Previous() int { return (r.next + RingSize - 2) % RingSize }

func (r *Ring) HasPrevious() bool { return r.uploaded >= 2 }

// Uploaded is the number of successful uploads so far.
func (r *Ring) Uploaded() int { return r.uploaded }

func (r *Ring) Texture(slot int) gpu.Texture { return r.textures[slot] }

func (r *Ring) Staged() bool { return r.staging != nil }

func (r *Ring) Close() {
	for i, tex := range r.textures {
		r.dev.DeleteTexture(tex)
		r.textures[i] = 0
	}
	if r.staging != nil {
		r.dev.DeleteBuffers(r.staging)
		r.staging = nil
	}
}
