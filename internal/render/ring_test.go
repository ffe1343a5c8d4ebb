package render

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallpipe/wallpipe/internal/gpu"
	"github.com/wallpipe/wallpipe/internal/texture"
)

func TestRingWritesSlotsInOrder(t *testing.T) {
	dev := newFakeDevice()
	r := NewRing(dev, log.New(io.Discard), true, false)
	require.True(t, r.Staged())

	var descs []*texture.Descriptor
	for i, want := range []int{0, 1, 2, 0} {
		d := img(i + 1)
		descs = append(descs, d)
		slot, err := r.Upload(d)
		require.NoError(t, err)
		assert.Equal(t, want, slot)
		assert.Equal(t, want, r.Displayed())
	}

	assert.Equal(t, 4, r.Uploaded())
	assert.Equal(t, 2, r.Previous())
	assert.True(t, r.HasPrevious())
	for _, d := range descs {
		assert.True(t, d.Released())
	}

	// Slot 0 was written twice with the same texture and its own staging buffer.
	require.Len(t, dev.uploads, 4)
	assert.Equal(t, dev.uploads[0].tex, dev.uploads[3].tex)
	assert.Equal(t, dev.uploads[0].opts.Staging, dev.uploads[3].opts.Staging)
	assert.NotEqual(t, dev.uploads[0].opts.Staging, dev.uploads[1].opts.Staging)
	assert.Len(t, dev.textures, RingSize)
}

func TestRingFirstUploadHasNoPrevious(t *testing.T) {
	r := NewRing(newFakeDevice(), log.New(io.Discard), false, false)
	assert.False(t, r.Staged())

	_, err := r.Upload(img(1))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Displayed())
	assert.False(t, r.HasPrevious())
}

func TestRingFailedUploadKeepsIndex(t *testing.T) {
	dev := newFakeDevice()
	r := NewRing(dev, log.New(io.Discard), true, false)

	_, err := r.Upload(img(1))
	require.NoError(t, err)

	dev.failUploads = true
	d := img(2)
	_, err = r.Upload(d)
	require.ErrorIs(t, err, errFakeUpload)
	assert.True(t, d.Released())
	assert.Equal(t, 1, r.Uploaded())
	assert.Equal(t, 0, r.Displayed())

	dev.failUploads = false
	slot, err := r.Upload(img(3))
	require.NoError(t, err)
	assert.Equal(t, 1, slot)
}

func TestRingDirectWithoutPixelBuffers(t *testing.T) {
	dev := newFakeDevice()
	dev.caps.PixelBuffers = false
	r := NewRing(dev, log.New(io.Discard), true, true)

	_, err := r.Upload(img(1))
	require.NoError(t, err)
	require.Len(t, dev.uploads, 1)
	assert.Equal(t, gpu.Buffer(0), dev.uploads[0].opts.Staging)
	assert.True(t, dev.uploads[0].opts.Compressed)
}

func TestRingClose(t *testing.T) {
	dev := newFakeDevice()
	r := NewRing(dev, log.New(io.Discard), true, false)
	_, err := r.Upload(img(1))
	require.NoError(t, err)

	r.Close()
	assert.Empty(t, dev.textures)
	assert.Empty(t, dev.buffers)
	assert.Equal(t, gpu.Texture(0), r.Texture(0))
}
