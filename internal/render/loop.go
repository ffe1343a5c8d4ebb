// Package render owns the GPU side of wallpipe: the texture ring, the
// transition state machine and the event loop that drives them.
package render

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wallpipe/wallpipe/internal/config"
	"github.com/wallpipe/wallpipe/internal/events"
	"github.com/wallpipe/wallpipe/internal/gpu"
	"github.com/wallpipe/wallpipe/internal/shaders"
)

// Surface is the window the loop presents to.
type Surface interface {
	// WaitEvents processes pending window events, blocking up to timeout
	// for one to arrive. Zero polls, a negative timeout waits forever.
	WaitEvents(timeout time.Duration)
	SwapBuffers()
	FramebufferSize() (width, height int)
	ToggleFullscreen()
}

type program struct {
	name     string
	id       gpu.Program
	tex0     int32
	tex1     int32
	progress int32
}

// Loop is the single consumer of the event queue and the only code that
// touches GPU state after startup.
type Loop struct {
	cfg     config.Config
	logger  *log.Logger
	dev     gpu.Device
	surface Surface
	queue   *events.Queue
	now     func() time.Time

	ring     *Ring
	trans    *Transition
	programs []program

	width, height int
	visible       bool
	tickPending   bool

	frames   int
	fps      float64
	fpsSince time.Time
}

// NewLoop compiles the display shader and the given transitions and sets
// up the ring. A display shader failure is fatal; a transition that fails
// to compile is logged and skipped.
func NewLoop(cfg config.Config, dev gpu.Device, surface Surface, queue *events.Queue, transitions []shaders.Source, logger *log.Logger) (*Loop, error) {
	l := &Loop{
		cfg:     cfg,
		logger:  logger,
		dev:     dev,
		surface: surface,
		queue:   queue,
		now:     time.Now,
		trans:   NewTransition(cfg.TransitionDuration, cfg.TransitionOrder),
		visible: true,
	}

	display, err := l.compile(shaders.Source{Name: "display", Code: shaders.Display})
	if err != nil {
		return nil, fmt.Errorf("display shader: %w", err)
	}
	l.programs = append(l.programs, display)
	l.addTransitions(transitions)

	l.ring = NewRing(dev, logger, cfg.Staging, cfg.Compression)
	logger.Debug("renderer ready",
		"transitions", len(l.programs)-1,
		"staging", l.ring.Staged(),
		"compression", cfg.Compression,
	)

	l.width, l.height = surface.FramebufferSize()
	dev.Viewport(l.width, l.height)
	l.fpsSince = l.now()
	return l, nil
}

func (l *Loop) compile(src shaders.Source) (program, error) {
	id, err := l.dev.CompileProgram(src.Name, src.Code)
	if err != nil {
		return program{}, err
	}
	return program{
		name:     src.Name,
		id:       id,
		tex0:     l.dev.UniformLocation(id, "tex0"),
		tex1:     l.dev.UniformLocation(id, "tex1"),
		progress: l.dev.UniformLocation(id, "normalizedur"),
	}, nil
}

func (l *Loop) addTransitions(srcs []shaders.Source) {
	for _, src := range srcs {
		p, err := l.compile(src)
		if err != nil {
			l.logger.Error("skipping transition shader", "name", src.Name, "path", src.Path, "err", err)
			continue
		}
		l.programs = append(l.programs, p)
		l.logger.Debug("transition shader loaded", "name", src.Name)
	}
}

// Run processes events until Quit or Fatal. The error of a Fatal event is
// returned.
func (l *Loop) Run() error {
	for {
		l.pump()
		// Only drain what is queued now; self-posted ticks wait for the
		// next pass so window events keep getting pumped.
		for n := l.queue.Len(); n > 0; n-- {
			ev, ok := l.queue.Pop()
			if !ok {
				break
			}
			done, err := l.handle(ev)
			if done {
				return err
			}
		}
	}
}

// pump lets the window deliver its events, blocking only when there is
// nothing to do.
func (l *Loop) pump() {
	switch {
	case l.queue.Len() > 0:
		l.surface.WaitEvents(0)
	case l.trans.Active():
		l.surface.WaitEvents(l.cfg.PollInterval)
		if l.queue.Len() == 0 && l.trans.Active() {
			l.postTick()
		}
	default:
		l.surface.WaitEvents(-1)
	}
}

func (l *Loop) postTick() {
	if l.tickPending {
		return
	}
	if err := l.queue.Post(events.Event{Kind: events.Tick}); err == nil {
		l.tickPending = true
	}
}

func (l *Loop) handle(ev events.Event) (done bool, err error) {
	switch ev.Kind {
	case events.ImageReady:
		l.showImage(ev)
	case events.Tick:
		l.tickPending = false
		if !l.trans.Active() {
			return false, nil
		}
		l.trans.Advance(l.now())
		l.present(true)
	case events.Resize:
		// A minimized window reports an empty framebuffer.
		if ev.Width <= 0 || ev.Height <= 0 {
			l.visible = false
			return false, nil
		}
		l.width, l.height = ev.Width, ev.Height
		l.dev.Viewport(ev.Width, ev.Height)
		l.visible = true
		l.redraw()
	case events.Visibility:
		l.visible = ev.Visible
		l.redraw()
	case events.Expose:
		l.redraw()
	case events.ToggleFullscreen:
		l.surface.ToggleFullscreen()
		l.redraw()
	case events.ReloadShaders:
		l.reloadShaders(ev.Shaders)
		l.redraw()
	case events.Quit:
		l.logger.Debug("quit requested")
		return true, nil
	case events.Fatal:
		return true, ev.Err
	default:
		l.logger.Warn("unknown event", "kind", ev.Kind)
	}
	return false, nil
}

func (l *Loop) showImage(ev events.Event) {
	desc := ev.Image
	if desc == nil {
		return
	}
	id, w, h := desc.ID, desc.Width, desc.Height
	slot, err := l.ring.Upload(desc)
	if err != nil {
		l.logger.Error("upload failed", "id", id, "err", err)
		return
	}
	l.logger.Debug("image uploaded", "id", id, "size", fmt.Sprintf("%dx%d", w, h), "slot", slot)

	if l.ring.HasPrevious() && l.trans.Begin(l.now(), l.ring.Previous(), l.ring.Displayed(), len(l.programs)) {
		l.logger.Debug("transition started", "shader", l.programs[l.trans.Shader()].name, "from", l.trans.From(), "to", l.trans.To())
	}
	l.redraw()
}

func (l *Loop) reloadShaders(srcs []shaders.Source) {
	l.trans.Stop()
	for _, p := range l.programs[1:] {
		l.dev.DeleteProgram(p.id)
	}
	l.programs = l.programs[:1]
	l.addTransitions(srcs)
	l.logger.Info("transition shaders reloaded", "count", len(l.programs)-1)
}

// redraw draws the current state when the surface is visible.
func (l *Loop) redraw() { l.present(l.trans.Active()) }

// present draws one frame. The final tick of a transition has already
// returned the machine to Static but is still drawn as a transition frame
// with its progress above 1. A transition frame schedules the next tick.
func (l *Loop) present(transitional bool) {
	if !l.visible {
		return
	}
	l.dev.Clear()

	switch {
	case l.ring.Uploaded() == 0:
	case transitional:
		l.drawTransition()
	default:
		l.drawStatic()
	}

	if l.cfg.Debug {
		l.dev.DrawOverlay(l.overlayLines())
	}
	l.surface.SwapBuffers()
	l.countFrame()

	if l.trans.Active() {
		l.postTick()
	}
}

func (l *Loop) drawStatic() {
	p := l.programs[0]
	l.dev.UseProgram(p.id)
	l.dev.BindTexture(0, l.ring.Texture(l.ring.Displayed()))
	l.dev.Uniform1i(p.tex0, 0)
	l.dev.DrawQuad()
}

func (l *Loop) drawTransition() {
	p := l.programs[l.trans.Shader()]
	l.dev.UseProgram(p.id)
	l.dev.BindTexture(0, l.ring.Texture(l.trans.To()))
	l.dev.BindTexture(1, l.ring.Texture(l.trans.From()))
	l.dev.Uniform1i(p.tex0, 0)
	l.dev.Uniform1i(p.tex1, 1)
	l.dev.Uniform1f(p.progress, float32(l.trans.Progress()))
	l.dev.DrawQuad()
}

func (l *Loop) countFrame() {
	l.frames++
	now := l.now()
	if d := now.Sub(l.fpsSince); d >= time.Second {
		l.fps = float64(l.frames) / d.Seconds()
		l.frames = 0
		l.fpsSince = now
	}
}

func (l *Loop) overlayLines() []string {
	lines := []string{
		fmt.Sprintf("Framebuffer: %dx%d  FPS: %.1f", l.width, l.height, l.fps),
		fmt.Sprintf("Images: %d  Slot: %d  Pending: %d", l.ring.Uploaded(), l.ring.Displayed(), l.queue.PendingImages()),
	}
	if l.trans.Active() {
		lines = append(lines, fmt.Sprintf("Transition: %s %.2f", l.programs[l.trans.Shader()].name, l.trans.Progress()))
	}
	return lines
}

// Close frees every GPU resource the loop created.
func (l *Loop) Close() {
	l.ring.Close()
	for _, p := range l.programs {
		l.dev.DeleteProgram(p.id)
	}
	l.programs = nil
	l.dev.Close()
}
