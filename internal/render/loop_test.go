package render

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallpipe/wallpipe/internal/config"
	"github.com/wallpipe/wallpipe/internal/events"
	"github.com/wallpipe/wallpipe/internal/shaders"
)

func post(t *testing.T, q *events.Queue, evs ...events.Event) {
	t.Helper()
	for _, ev := range evs {
		require.NoError(t, q.Post(ev))
	}
}

func imageEvent(w int) events.Event {
	return events.Event{Kind: events.ImageReady, Image: img(w)}
}

func TestLoopImagesFillRingInOrder(t *testing.T) {
	h, err := newHarness(config.Default(), nil, nil)
	require.NoError(t, err)

	post(t, h.queue, imageEvent(1), imageEvent(2), imageEvent(3))
	require.NoError(t, h.loop.Run())

	require.Len(t, h.dev.uploads, 3)
	for slot, u := range h.dev.uploads {
		assert.Equal(t, h.loop.ring.Texture(slot), u.tex)
		assert.Equal(t, slot+1, u.width)
	}
	assert.Equal(t, 2, h.loop.ring.Displayed())
}

func TestLoopDisplayShaderOnlyNeverTransitions(t *testing.T) {
	h, err := newHarness(config.Default(), nil, nil)
	require.NoError(t, err)

	post(t, h.queue, imageEvent(1), imageEvent(2))
	require.NoError(t, h.loop.Run())

	// One static frame per image and no ticks in between.
	require.Len(t, h.dev.frames, 2)
	for _, f := range h.dev.frames {
		assert.Equal(t, "display", h.dev.programName(f.program))
	}
	assert.Equal(t, h.loop.ring.Texture(1), h.dev.frames[1].units[0])
	assert.False(t, h.loop.trans.Active())
	for _, w := range h.surface.waits {
		assert.LessOrEqual(t, w, time.Duration(0), "loop polled with a timeout while static")
	}
}

func TestLoopTransitionProgress(t *testing.T) {
	h, err := newHarness(config.Default(), []shaders.Source{shaders.BuiltinFade()}, nil)
	require.NoError(t, err)

	post(t, h.queue, imageEvent(1), imageEvent(2))
	require.NoError(t, h.loop.Run())

	var progress []float32
	for _, f := range h.dev.frames {
		if h.dev.programName(f.program) != "fade" {
			continue
		}
		progress = append(progress, f.progress)
		assert.Equal(t, h.loop.ring.Texture(1), f.units[0], "tex0 is the new image")
		assert.Equal(t, h.loop.ring.Texture(0), f.units[1], "tex1 is the old image")
	}
	require.NotEmpty(t, progress)

	assert.Equal(t, float32(0), progress[0])
	over := 0
	for i, p := range progress {
		if i > 0 {
			assert.Greater(t, p, progress[i-1])
		}
		if p > 1 {
			over++
		}
	}
	assert.Equal(t, 1, over, "progress past 1 is drawn exactly once")
	assert.Greater(t, progress[len(progress)-1], float32(1))
	assert.False(t, h.loop.trans.Active())

	// 1.12s at 16ms per frame.
	assert.Len(t, progress, 72)
}

func TestLoopFailedUploadLeavesRing(t *testing.T) {
	dev := newFakeDevice()
	h, err := newHarness(config.Default(), []shaders.Source{shaders.BuiltinFade()}, dev)
	require.NoError(t, err)

	first := img(1)
	post(t, h.queue, events.Event{Kind: events.ImageReady, Image: first})
	require.NoError(t, h.loop.Run())
	require.Equal(t, 1, h.loop.ring.Uploaded())

	dev.failUploads = true
	bad := img(2)
	post(t, h.queue, events.Event{Kind: events.ImageReady, Image: bad})
	require.NoError(t, h.loop.Run())

	assert.True(t, first.Released())
	assert.True(t, bad.Released())
	assert.Equal(t, 1, h.loop.ring.Uploaded())
	assert.Equal(t, 0, h.loop.ring.Displayed())
	assert.False(t, h.loop.trans.Active())
	assert.Len(t, h.dev.frames, 1)
}

func TestLoopFatalReturnsError(t *testing.T) {
	h, err := newHarness(config.Default(), nil, nil)
	require.NoError(t, err)

	boom := errors.New("fifo open failed")
	post(t, h.queue, events.Event{Kind: events.Fatal, Err: boom})
	assert.ErrorIs(t, h.loop.Run(), boom)
}

func TestLoopWindowEvents(t *testing.T) {
	cfg := config.Default()
	cfg.Debug = true
	h, err := newHarness(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 800, h.dev.viewW)

	post(t, h.queue,
		imageEvent(1),
		events.Event{Kind: events.Visibility, Visible: false},
		events.Event{Kind: events.Expose},
		events.Event{Kind: events.Resize, Width: 1920, Height: 1080},
		events.Event{Kind: events.ToggleFullscreen},
	)
	require.NoError(t, h.loop.Run())

	assert.Equal(t, 1920, h.dev.viewW)
	assert.Equal(t, 1080, h.dev.viewH)
	assert.Equal(t, 1, h.surface.toggles)
	// image, resize and toggle draw; expose while hidden does not
	require.Len(t, h.dev.frames, 3)
	assert.Contains(t, h.dev.frames[2].overlay[0], "1920x1080")
}

func TestLoopEmptyResizeHidesSurface(t *testing.T) {
	h, err := newHarness(config.Default(), nil, nil)
	require.NoError(t, err)

	post(t, h.queue,
		imageEvent(1),
		events.Event{Kind: events.Visibility, Visible: false},
		events.Event{Kind: events.Resize, Width: 0, Height: 0},
		events.Event{Kind: events.Expose},
		imageEvent(2),
		events.Event{Kind: events.Resize, Width: 640, Height: 480},
	)
	require.NoError(t, h.loop.Run())

	assert.Equal(t, 640, h.dev.viewW)
	assert.Equal(t, 480, h.dev.viewH)
	// first image, then the resize back to a real size
	assert.Len(t, h.dev.frames, 2)
}

func TestLoopReloadShaders(t *testing.T) {
	dev := newFakeDevice()
	dev.failCompile["broken"] = true
	h, err := newHarness(config.Default(), []shaders.Source{shaders.BuiltinFade()}, dev)
	require.NoError(t, err)
	require.Len(t, h.loop.programs, 2)
	old := h.loop.programs[1].id

	post(t, h.queue, events.Event{Kind: events.ReloadShaders, Shaders: []shaders.Source{
		{Name: "wipe", Code: "void main(){}"},
		{Name: "broken", Code: "nope"},
	}})
	require.NoError(t, h.loop.Run())

	assert.True(t, dev.deleted[old])
	require.Len(t, h.loop.programs, 2)
	assert.Equal(t, "wipe", h.loop.programs[1].name)
}

func TestLoopDisplayShaderFailureIsFatal(t *testing.T) {
	dev := newFakeDevice()
	dev.failCompile["display"] = true
	_, err := newHarness(config.Default(), nil, dev)
	assert.Error(t, err)
}

func TestLoopClose(t *testing.T) {
	h, err := newHarness(config.Default(), []shaders.Source{shaders.BuiltinFade()}, nil)
	require.NoError(t, err)
	post(t, h.queue, imageEvent(1))
	require.NoError(t, h.loop.Run())

	h.loop.Close()
	assert.Empty(t, h.dev.textures)
	assert.Len(t, h.dev.deleted, 2)
	assert.True(t, h.dev.closed)
}
