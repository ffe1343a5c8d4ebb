package render

import (
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wallpipe/wallpipe/internal/config"
	"github.com/wallpipe/wallpipe/internal/events"
	"github.com/wallpipe/wallpipe/internal/gpu"
	"github.com/wallpipe/wallpipe/internal/shaders"
	"github.com/wallpipe/wallpipe/internal/texture"
)

var errFakeUpload = errors.New("fake upload failure")

type upload struct {
	tex    gpu.Texture
	width  int
	opts   gpu.UploadOptions
	pixels int
}

type frame struct {
	program  gpu.Program
	units    map[int]gpu.Texture
	progress float32
	overlay  []string
}

// fakeDevice records what the loop asks of the GPU.
type fakeDevice struct {
	caps        gpu.Caps
	nextName    uint32
	uploads     []upload
	failUploads bool
	failCompile map[string]bool

	programs map[gpu.Program]string
	deleted  map[gpu.Program]bool
	textures map[gpu.Texture]bool
	buffers  []gpu.Buffer
	closed   bool

	viewW, viewH int
	current      frame
	frames       []frame
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		caps:        gpu.Caps{Major: 3, Minor: 3, MaxTextureSize: 4096, PixelBuffers: true},
		failCompile: map[string]bool{},
		programs:    map[gpu.Program]string{},
		deleted:     map[gpu.Program]bool{},
		textures:    map[gpu.Texture]bool{},
	}
}

func (d *fakeDevice) name() uint32 {
	d.nextName++
	return d.nextName
}

func (d *fakeDevice) Caps() gpu.Caps { return d.caps }

func (d *fakeDevice) CreateTexture() (gpu.Texture, error) {
	t := gpu.Texture(d.name())
	d.textures[t] = true
	return t, nil
}

func (d *fakeDevice) DeleteTexture(t gpu.Texture) {
	if t != 0 {
		delete(d.textures, t)
	}
}

func (d *fakeDevice) CreateStagingBuffers(n int) ([]gpu.Buffer, error) {
	for i := 0; i < n; i++ {
		d.buffers = append(d.buffers, gpu.Buffer(d.name()))
	}
	return append([]gpu.Buffer(nil), d.buffers...), nil
}

func (d *fakeDevice) DeleteBuffers(bufs []gpu.Buffer) { d.buffers = nil }

func (d *fakeDevice) Upload(dst gpu.Texture, desc *texture.Descriptor, opts gpu.UploadOptions) error {
	if d.failUploads {
		return errFakeUpload
	}
	d.uploads = append(d.uploads, upload{tex: dst, width: desc.Width, opts: opts, pixels: len(desc.Pixels)})
	return nil
}

func (d *fakeDevice) CompileProgram(name, fragment string) (gpu.Program, error) {
	if d.failCompile[name] {
		return 0, gpu.ErrCompile
	}
	p := gpu.Program(d.name())
	d.programs[p] = name
	return p, nil
}

func (d *fakeDevice) DeleteProgram(p gpu.Program) { d.deleted[p] = true }

func (d *fakeDevice) UniformLocation(p gpu.Program, name string) int32 {
	switch name {
	case "tex0":
		return 0
	case "tex1":
		return 1
	case "normalizedur":
		return 2
	}
	return -1
}

func (d *fakeDevice) UseProgram(p gpu.Program) { d.current.program = p }

func (d *fakeDevice) Uniform1i(loc int32, v int32) {}

func (d *fakeDevice) Uniform1f(loc int32, v float32) {
	if loc == 2 {
		d.current.progress = v
	}
}

func (d *fakeDevice) BindTexture(unit int, t gpu.Texture) {
	if d.current.units == nil {
		d.current.units = map[int]gpu.Texture{}
	}
	d.current.units[unit] = t
}

func (d *fakeDevice) Viewport(w, h int) { d.viewW, d.viewH = w, h }

func (d *fakeDevice) Clear() { d.current = frame{} }

func (d *fakeDevice) DrawQuad() {}

func (d *fakeDevice) DrawOverlay(lines []string) { d.current.overlay = lines }

func (d *fakeDevice) Close() { d.closed = true }

// present is called by the fake surface on swap.
func (d *fakeDevice) present() { d.frames = append(d.frames, d.current) }

func (d *fakeDevice) programName(p gpu.Program) string { return d.programs[p] }

// fakeClock only moves when the fake surface says so.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeSurface advances the clock by one vsync interval per swap and calls
// idle when the loop would block forever.
type fakeSurface struct {
	dev      *fakeDevice
	clock    *fakeClock
	vsync    time.Duration
	idle     func()
	waits    []time.Duration
	toggles  int
	fbW, fbH int
}

func (s *fakeSurface) WaitEvents(timeout time.Duration) {
	s.waits = append(s.waits, timeout)
	switch {
	case timeout > 0:
		s.clock.Advance(timeout)
	case timeout < 0 && s.idle != nil:
		s.idle()
	}
}

func (s *fakeSurface) SwapBuffers() {
	s.dev.present()
	s.clock.Advance(s.vsync)
}

func (s *fakeSurface) FramebufferSize() (int, int) { return s.fbW, s.fbH }

func (s *fakeSurface) ToggleFullscreen() { s.toggles++ }

type harness struct {
	dev     *fakeDevice
	surface *fakeSurface
	clock   *fakeClock
	queue   *events.Queue
	loop    *Loop
}

func newHarness(cfg config.Config, transitions []shaders.Source, dev *fakeDevice) (*harness, error) {
	if dev == nil {
		dev = newFakeDevice()
	}
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	queue := events.NewQueue(cfg.QueueCapacity)
	surface := &fakeSurface{dev: dev, clock: clock, vsync: 16 * time.Millisecond, fbW: 800, fbH: 600}
	// Once the loop goes idle there is nothing left for it to do.
	surface.idle = func() { _ = queue.Post(events.Event{Kind: events.Quit}) }

	loop, err := NewLoop(cfg, dev, surface, queue, transitions, log.New(io.Discard))
	if err != nil {
		return nil, err
	}
	loop.now = clock.Now
	loop.fpsSince = clock.Now()
	return &harness{dev: dev, surface: surface, clock: clock, queue: queue, loop: loop}, nil
}

func img(w int) *texture.Descriptor {
	return &texture.Descriptor{
		Width: w, Height: 1, BytesPerPixel: 4, Size: w * 4,
		InternalFormat: texture.InternalRGBA,
		Pixels:         make([]byte, w*4),
	}
}
