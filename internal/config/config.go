// Package config holds the immutable runtime configuration of wallpipe.
//
// A Config is built once in main (defaults, then an optional YAML file, then
// command line flags) and handed by value to every component constructor.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFIFOPath           = "/tmp/wallfifo0"
	DefaultTitle              = "wallpaper"
	DefaultQueueCapacity      = 10
	DefaultTransitionDuration = 1120 * time.Millisecond
	DefaultPollInterval       = 16 * time.Millisecond
)

// TransitionOrder selects which transition shader plays for a new image.
type TransitionOrder string

const (
	OrderLast       TransitionOrder = "last"
	OrderRoundRobin TransitionOrder = "round-robin"
	OrderRandom     TransitionOrder = "random"
)

var ErrInvalid = errors.New("invalid configuration")

// Pair is a "WxH" style integer pair used for window size and position.
// A component of -1 means "derive from the monitor".
type Pair struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%dx%d", p.X, p.Y)
}

// Unset reports whether neither component was given.
func (p Pair) Unset() bool {
	return p.X < 0 && p.Y < 0
}

// UnmarshalYAML accepts both "1280x720" and {x: 1280, y: 720}.
func (p *Pair) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := ParsePair(value.Value)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	}
	type plain Pair
	return value.Decode((*plain)(p))
}

// ParsePair parses "WxH".
func ParsePair(s string) (Pair, error) {
	left, right, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Pair{}, fmt.Errorf("%w: %q is not of the form WxH", ErrInvalid, s)
	}
	x, err := strconv.Atoi(left)
	if err != nil {
		return Pair{}, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	y, err := strconv.Atoi(right)
	if err != nil {
		return Pair{}, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	return Pair{X: x, Y: y}, nil
}

type Config struct {
	FIFOPath string `yaml:"fifo"`
	File     string `yaml:"file"`
	Title    string `yaml:"title"`

	Resolution Pair `yaml:"resolution"`
	Position   Pair `yaml:"position"`
	Fullscreen bool `yaml:"fullscreen"`
	Borderless bool `yaml:"borderless"`

	Compression bool `yaml:"compression"`
	// Staging enables pixel buffer object uploads when the driver has them.
	Staging bool `yaml:"staging"`

	Verbose bool `yaml:"verbose"`
	Debug   bool `yaml:"debug"`

	// Shaders are transition fragment shader files. Empty means the
	// built-in fade unless NoTransition is set.
	Shaders            []string        `yaml:"shaders"`
	NoTransition       bool            `yaml:"no_transition"`
	TransitionDuration time.Duration   `yaml:"transition_duration"`
	TransitionOrder    TransitionOrder `yaml:"transition_order"`
	WatchShaders       bool            `yaml:"watch_shaders"`

	PollInterval  time.Duration `yaml:"poll_interval"`
	QueueCapacity int           `yaml:"queue_capacity"`
}

func Default() Config {
	return Config{
		FIFOPath:           DefaultFIFOPath,
		Title:              DefaultTitle,
		Resolution:         Pair{X: -1, Y: -1},
		Position:           Pair{X: -1, Y: -1},
		Staging:            true,
		TransitionDuration: DefaultTransitionDuration,
		TransitionOrder:    OrderLast,
		PollInterval:       DefaultPollInterval,
		QueueCapacity:      DefaultQueueCapacity,
	}
}

// Load reads a YAML file on top of base. Keys missing from the file keep
// the values already in base.
func Load(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.FIFOPath == "" {
		return fmt.Errorf("%w: fifo path is empty", ErrInvalid)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("%w: queue capacity %d must be positive", ErrInvalid, c.QueueCapacity)
	}
	if c.TransitionDuration <= 0 {
		return fmt.Errorf("%w: transition duration %s must be positive", ErrInvalid, c.TransitionDuration)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval %s must be positive", ErrInvalid, c.PollInterval)
	}
	switch c.TransitionOrder {
	case OrderLast, OrderRoundRobin, OrderRandom:
	default:
		return fmt.Errorf("%w: unknown transition order %q", ErrInvalid, c.TransitionOrder)
	}
	if !c.Resolution.Unset() && (c.Resolution.X <= 0 || c.Resolution.Y <= 0) {
		return fmt.Errorf("%w: resolution %s", ErrInvalid, c.Resolution)
	}
	return nil
}
