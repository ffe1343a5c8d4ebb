package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePair(t *testing.T) {
	p, err := ParsePair("1280x720")
	require.NoError(t, err)
	assert.Equal(t, Pair{X: 1280, Y: 720}, p)

	p, err = ParsePair(" 10X20 ")
	require.NoError(t, err)
	assert.Equal(t, Pair{X: 10, Y: 20}, p)

	for _, bad := range []string{"", "1280", "ax2", "2xb"} {
		_, err := ParsePair(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/tmp/wallfifo0", cfg.FIFOPath)
	assert.Equal(t, 10, cfg.QueueCapacity)
	assert.True(t, cfg.Resolution.Unset())
	assert.Equal(t, OrderLast, cfg.TransitionOrder)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty fifo":     func(c *Config) { c.FIFOPath = "" },
		"zero queue":     func(c *Config) { c.QueueCapacity = 0 },
		"zero duration":  func(c *Config) { c.TransitionDuration = 0 },
		"zero poll":      func(c *Config) { c.PollInterval = 0 },
		"bad order":      func(c *Config) { c.TransitionOrder = "shuffle" },
		"bad resolution": func(c *Config) { c.Resolution = Pair{X: 0, Y: 100} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLoadOverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fifo: /run/user/1000/wall
resolution: 800x600
position: {x: 5, y: 6}
shaders: [a.glsl, b.glsl]
transition_duration: 2s
transition_order: round-robin
`), 0o644))

	cfg, err := Load(path, Default())
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/wall", cfg.FIFOPath)
	assert.Equal(t, Pair{X: 800, Y: 600}, cfg.Resolution)
	assert.Equal(t, Pair{X: 5, Y: 6}, cfg.Position)
	assert.Equal(t, []string{"a.glsl", "b.glsl"}, cfg.Shaders)
	assert.Equal(t, 2*time.Second, cfg.TransitionDuration)
	assert.Equal(t, OrderRoundRobin, cfg.TransitionOrder)
	assert.Equal(t, DefaultTitle, cfg.Title)
	assert.True(t, cfg.Staging)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), Default())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
