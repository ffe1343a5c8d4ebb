// Package window creates the glfw window and OpenGL context and turns
// window callbacks into render loop events.
package window

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/wallpipe/wallpipe/internal/config"
	"github.com/wallpipe/wallpipe/internal/events"
)

// Window is a glfw window with a current 3.3 core context. All methods
// except Wake must be called from the main thread.
type Window struct {
	win    *glfw.Window
	queue  *events.Queue
	logger *log.Logger

	fullscreen bool
	// windowed geometry restored when leaving fullscreen
	x, y, w, h int
}

// Open initializes glfw, creates the window described by cfg and makes its
// context current on the calling thread.
func Open(cfg config.Config, queue *events.Queue, logger *log.Logger) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("initialize glfw: %w", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	if cfg.Borderless {
		glfw.WindowHint(glfw.Decorated, glfw.False)
	}
	if cfg.Debug {
		glfw.WindowHint(glfw.OpenGLDebugContext, glfw.True)
	}

	monitor := glfw.GetPrimaryMonitor()
	if monitor == nil {
		glfw.Terminate()
		return nil, fmt.Errorf("no monitor available")
	}
	mode := monitor.GetVideoMode()

	// Without explicit geometry the window covers half the monitor,
	// centered.
	w, h := mode.Width/2, mode.Height/2
	if !cfg.Resolution.Unset() {
		w, h = cfg.Resolution.X, cfg.Resolution.Y
	}
	x, y := mode.Width/4, mode.Height/4
	if !cfg.Position.Unset() {
		x, y = cfg.Position.X, cfg.Position.Y
	}

	var fsMonitor *glfw.Monitor
	cw, ch := w, h
	if cfg.Fullscreen {
		fsMonitor = monitor
		cw, ch = mode.Width, mode.Height
	}
	win, err := glfw.CreateWindow(cw, ch, cfg.Title, fsMonitor, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}
	if !cfg.Fullscreen {
		win.SetPos(x, y)
	}
	win.MakeContextCurrent()
	glfw.SwapInterval(1)

	wd := &Window{
		win:        win,
		queue:      queue,
		logger:     logger,
		fullscreen: cfg.Fullscreen,
		x:          x,
		y:          y,
		w:          w,
		h:          h,
	}
	wd.installCallbacks()

	fbw, fbh := win.GetFramebufferSize()
	logger.Debug("window created", "title", cfg.Title, "framebuffer", fmt.Sprintf("%dx%d", fbw, fbh), "fullscreen", cfg.Fullscreen)
	return wd, nil
}

func (wd *Window) post(ev events.Event) {
	if err := wd.queue.Post(ev); err != nil {
		wd.logger.Debug("dropping window event", "kind", ev.Kind, "err", err)
	}
}

func (wd *Window) installCallbacks() {
	wd.win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		wd.post(events.Event{Kind: events.Resize, Width: width, Height: height})
	})
	wd.win.SetIconifyCallback(func(_ *glfw.Window, iconified bool) {
		wd.post(events.Event{Kind: events.Visibility, Visible: !iconified})
	})
	wd.win.SetRefreshCallback(func(_ *glfw.Window) {
		wd.post(events.Event{Kind: events.Expose})
	})
	wd.win.SetCloseCallback(func(_ *glfw.Window) {
		wd.post(events.Event{Kind: events.Quit})
	})
	wd.win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		if (key == glfw.KeyEnter || key == glfw.KeyKPEnter) && mods&glfw.ModControl != 0 {
			wd.post(events.Event{Kind: events.ToggleFullscreen})
		}
	})
}

// WaitEvents processes window events. Zero polls, a negative timeout
// blocks until an event or Wake.
func (wd *Window) WaitEvents(timeout time.Duration) {
	switch {
	case timeout == 0:
		glfw.PollEvents()
	case timeout < 0:
		glfw.WaitEvents()
	default:
		glfw.WaitEventsTimeout(timeout.Seconds())
	}
}

// Wake interrupts WaitEvents. It is safe to call from any goroutine.
func Wake() { glfw.PostEmptyEvent() }

func (wd *Window) SwapBuffers() { wd.win.SwapBuffers() }

func (wd *Window) FramebufferSize() (int, int) { return wd.win.GetFramebufferSize() }

func (wd *Window) ToggleFullscreen() {
	if wd.fullscreen {
		wd.win.SetMonitor(nil, wd.x, wd.y, wd.w, wd.h, glfw.DontCare)
		wd.fullscreen = false
	} else {
		wd.x, wd.y = wd.win.GetPos()
		wd.w, wd.h = wd.win.GetSize()
		monitor := glfw.GetPrimaryMonitor()
		mode := monitor.GetVideoMode()
		wd.win.SetMonitor(monitor, 0, 0, mode.Width, mode.Height, mode.RefreshRate)
		wd.fullscreen = true
	}
	wd.logger.Debug("fullscreen toggled", "fullscreen", wd.fullscreen)
}

// Close destroys the window and terminates glfw.
func (wd *Window) Close() {
	wd.win.Destroy()
	glfw.Terminate()
}
