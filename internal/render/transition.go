package render

import (
	"math/rand/v2"
	"time"

	"github.com/wallpipe/wallpipe/internal/config"
)

// Transition is the Static/Transitioning state machine. It only tracks
// time and slot indices; drawing is left to the loop.
type Transition struct {
	duration time.Duration
	order    config.TransitionOrder
	intn     func(int) int

	active   bool
	elapsed  time.Duration
	lastTick time.Time
	progress float64
	from, to int
	shader   int
	started  int
}

func NewTransition(duration time.Duration, order config.TransitionOrder) *Transition {
	return &Transition{duration: duration, order: order, intn: rand.IntN}
}

// Begin enters Transitioning from slot from to slot to. shaderCount
// includes the display shader at index 0, so nothing happens unless at
// least one transition shader exists.
func (t *Transition) Begin(now time.Time, from, to, shaderCount int) bool {
	if shaderCount < 2 {
		return false
	}
	t.active = true
	t.elapsed = 0
	t.progress = 0
	t.lastTick = now
	t.from, t.to = from, to
	t.shader = t.pick(shaderCount - 1)
	t.started++
	return true
}

// pick returns a shader index in [1, n].
func (t *Transition) pick(n int) int {
	switch t.order {
	case config.OrderRoundRobin:
		return 1 + t.started%n
	case config.OrderRandom:
		return 1 + t.intn(n)
	default:
		return n
	}
}

// Advance accumulates the time since the previous tick and returns the
// new progress. The tick that moves elapsed past the duration returns to
// Static, so a progress above 1 is reported exactly once.
func (t *Transition) Advance(now time.Time) float64 {
	if !t.active {
		return t.progress
	}
	if d := now.Sub(t.lastTick); d > 0 {
		t.elapsed += d
	}
	t.lastTick = now
	if t.duration > 0 {
		t.progress = float64(t.elapsed) / float64(t.duration)
	} else {
		t.progress = 1
	}
	if t.elapsed > t.duration || t.duration <= 0 {
		t.active = false
	}
	return t.progress
}

// Stop returns to Static without finishing.
func (t *Transition) Stop() { t.active = false }

func (t *Transition) Active() bool      { return t.active }
func (t *Transition) Progress() float64 { return t.progress }
func (t *Transition) From() int         { return t.from }
func (t *Transition) To() int           { return t.to }

// Shader is the index of the transition shader in use.
func (t *Transition) Shader() int { return t.shader }
