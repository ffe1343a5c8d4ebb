// Package events carries work from producers (the ingestion goroutine,
// window callbacks, signal relay, shader watcher) to the single render
// goroutine.
package events

import (
	"errors"
	"sync"

	"github.com/wallpipe/wallpipe/internal/shaders"
	"github.com/wallpipe/wallpipe/internal/texture"
)

var ErrClosed = errors.New("event queue closed")

type Kind int

const (
	// ImageReady carries a decoded image; the receiver owns Image.
	ImageReady Kind = iota
	// Tick advances a running transition by one frame.
	Tick
	Resize
	Visibility
	Expose
	ToggleFullscreen
	ReloadShaders
	Quit
	// Fatal stops the render loop with Err.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case ImageReady:
		return "image-ready"
	case Tick:
		return "tick"
	case Resize:
		return "resize"
	case Visibility:
		return "visibility"
	case Expose:
		return "expose"
	case ToggleFullscreen:
		return "toggle-fullscreen"
	case ReloadShaders:
		return "reload-shaders"
	case Quit:
		return "quit"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}

type Event struct {
	Kind Kind

	Image *texture.Descriptor

	Width, Height int
	Visible       bool

	Shaders []shaders.Source

	Err error
}

// Queue is a FIFO that any goroutine may post to and one goroutine drains.
// ImageReady events form a bounded lane: Post blocks while capacity images
// are pending, which throttles the producer instead of letting memory grow.
// Every other kind is accepted immediately so the consumer can post to its
// own queue without deadlocking.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []Event
	images   int
	capacity int
	closed   bool

	// wakeMu is held while wake runs so SetWaker waits for it.
	wakeMu sync.Mutex
	wake   func()
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// SetWaker installs a function called after every successful Post. The
// window uses it to interrupt a blocking platform wait. It returns once no
// call to the previous waker is in flight.
func (q *Queue) SetWaker(wake func()) {
	q.wakeMu.Lock()
	q.wake = wake
	q.wakeMu.Unlock()
}

func (q *Queue) Post(ev Event) error {
	q.mu.Lock()
	if ev.Kind == ImageReady {
		for !q.closed && q.images >= q.capacity {
			q.cond.Wait()
		}
	}
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, ev)
	if ev.Kind == ImageReady {
		q.images++
	}
	q.mu.Unlock()

	q.wakeMu.Lock()
	if q.wake != nil {
		q.wake()
	}
	q.wakeMu.Unlock()
	return nil
}

// Pop removes the oldest event without blocking.
func (q *Queue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Event{}, false
	}
	ev := q.items[0]
	q.items[0] = Event{}
	q.items = q.items[1:]
	if ev.Kind == ImageReady {
		q.images--
		q.cond.Broadcast()
	}
	return ev, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PendingImages is the number of ImageReady events not yet popped.
func (q *Queue) PendingImages() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.images
}

// Close rejects further posts and wakes blocked producers. Pending image
// descriptors are released since nobody will consume them.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	for _, ev := range q.items {
		if ev.Image != nil {
			ev.Image.Release()
		}
	}
	q.items = nil
	q.images = 0
	q.cond.Broadcast()
}
