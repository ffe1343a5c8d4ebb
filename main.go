// wallpipe shows images written to a named pipe in a window, cross-fading
// between them with GLSL transitions.
//
// Pipeline:
//  1. A reader goroutine blocks on the FIFO, decodes each payload and
//     posts it to the event queue.
//  2. The main thread owns the GL context: it uploads images into a ring
//     of three textures and draws the display or transition shader.
//  3. Window callbacks, signals and the shader watcher only post events.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/wallpipe/wallpipe/internal/config"
	"github.com/wallpipe/wallpipe/internal/events"
	"github.com/wallpipe/wallpipe/internal/gpu"
	"github.com/wallpipe/wallpipe/internal/ingest"
	"github.com/wallpipe/wallpipe/internal/render"
	"github.com/wallpipe/wallpipe/internal/shaders"
	"github.com/wallpipe/wallpipe/internal/window"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func init() {
	// OpenGL and glfw calls must stay on the main thread.
	runtime.LockOSThread()
}

// options holds raw flag values before they are merged into a Config.
type options struct {
	configPath string
	cfg        config.Config
	resolution string
	position   string
	noStaging  bool
}

func main() {
	if err := newRootCommand(&options{}).Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wallpipe",
		Short:         "Display images written to a named pipe with shader transitions",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			return run(cfg, newLogger(cfg))
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "read settings from a YAML file; flags override it")
	flags.StringVarP(&opts.cfg.FIFOPath, "fifo", "p", config.DefaultFIFOPath, "path of the named pipe to read images from")

	flags = cmd.Flags()
	flags.StringVarP(&opts.cfg.File, "file", "f", "", "image to show at startup")
	flags.StringArrayVarP(&opts.cfg.Shaders, "shader", "s", nil, "transition fragment shader file (repeatable)")
	flags.StringVarP(&opts.resolution, "resolution", "R", "", "window size as WxH (default half the monitor)")
	flags.StringVarP(&opts.position, "position", "P", "", "window position as XxY (default a quarter of the monitor)")
	flags.BoolVarP(&opts.cfg.Fullscreen, "fullscreen", "F", false, "start fullscreen; Ctrl+Enter toggles")
	flags.BoolVarP(&opts.cfg.Borderless, "borderless", "b", false, "create the window without decorations")
	flags.BoolVarP(&opts.cfg.Compression, "compression", "C", false, "store textures compressed")
	flags.BoolVarP(&opts.cfg.Verbose, "verbose", "V", false, "log debug output")
	flags.BoolVarP(&opts.cfg.Debug, "debug", "d", false, "request a debug context and draw an on-screen overlay")
	flags.StringVarP(&opts.cfg.Title, "title", "T", config.DefaultTitle, "window title")
	flags.DurationVar(&opts.cfg.TransitionDuration, "transition-duration", config.DefaultTransitionDuration, "length of a transition")
	flags.StringVar((*string)(&opts.cfg.TransitionOrder), "transition-order", string(config.OrderLast), "transition shader choice: last, round-robin or random")
	flags.BoolVar(&opts.cfg.NoTransition, "no-transition", false, "switch images without a transition")
	flags.BoolVar(&opts.noStaging, "no-staging", false, "upload textures directly instead of through pixel buffers")
	flags.DurationVar(&opts.cfg.PollInterval, "poll-interval", config.DefaultPollInterval, "event wait timeout while a transition runs")
	flags.IntVar(&opts.cfg.QueueCapacity, "queue-capacity", config.DefaultQueueCapacity, "decoded images that may wait for upload")
	flags.BoolVar(&opts.cfg.WatchShaders, "watch-shaders", false, "reload transition shaders when their files change")

	cmd.AddCommand(newVersionCommand(), newAboutCommand(opts))
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wallpipe %s %s/%s\n", version, runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newAboutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "about",
		Short: "Show version and configuration in a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			runAbout(cfg)
			return nil
		},
	}
}

// resolve layers defaults, the config file and explicitly set flags.
func (o *options) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath, cfg)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	set := func(name string, apply func()) {
		if changed(name) {
			apply()
		}
	}
	set("fifo", func() { cfg.FIFOPath = o.cfg.FIFOPath })
	set("file", func() { cfg.File = o.cfg.File })
	set("shader", func() { cfg.Shaders = o.cfg.Shaders })
	set("fullscreen", func() { cfg.Fullscreen = o.cfg.Fullscreen })
	set("borderless", func() { cfg.Borderless = o.cfg.Borderless })
	set("compression", func() { cfg.Compression = o.cfg.Compression })
	set("verbose", func() { cfg.Verbose = o.cfg.Verbose })
	set("debug", func() { cfg.Debug = o.cfg.Debug })
	set("title", func() { cfg.Title = o.cfg.Title })
	set("transition-duration", func() { cfg.TransitionDuration = o.cfg.TransitionDuration })
	set("transition-order", func() { cfg.TransitionOrder = o.cfg.TransitionOrder })
	set("no-transition", func() { cfg.NoTransition = o.cfg.NoTransition })
	set("no-staging", func() { cfg.Staging = !o.noStaging })
	set("poll-interval", func() { cfg.PollInterval = o.cfg.PollInterval })
	set("queue-capacity", func() { cfg.QueueCapacity = o.cfg.QueueCapacity })
	set("watch-shaders", func() { cfg.WatchShaders = o.cfg.WatchShaders })

	if changed("resolution") {
		p, err := config.ParsePair(o.resolution)
		if err != nil {
			return cfg, fmt.Errorf("--resolution: %w", err)
		}
		cfg.Resolution = p
	}
	if changed("position") {
		p, err := config.ParsePair(o.position)
		if err != nil {
			return cfg, fmt.Errorf("--position: %w", err)
		}
		cfg.Position = p
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) *log.Logger {
	level := log.InfoLevel
	if cfg.Verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "wallpipe",
		Level:           level,
	})
}

// transitionSources picks the transition shaders: none, the built-in fade
// or the given files. Files that fail to load are logged and skipped.
func transitionSources(cfg config.Config, logger *log.Logger) []shaders.Source {
	if cfg.NoTransition {
		return nil
	}
	if len(cfg.Shaders) == 0 {
		return []shaders.Source{shaders.BuiltinFade()}
	}
	srcs, errs := shaders.LoadFiles(cfg.Shaders)
	for _, err := range errs {
		logger.Error("skipping transition shader", "err", err)
	}
	return srcs
}

func run(cfg config.Config, logger *log.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := events.NewQueue(cfg.QueueCapacity)
	defer queue.Close()

	win, err := window.Open(cfg, queue, logger.With("component", "window"))
	if err != nil {
		return err
	}
	defer win.Close()

	dev, err := gpu.NewGL(logger.With("component", "gpu"), cfg.Debug)
	if err != nil {
		return err
	}
	caps := dev.Caps()
	logger.Info("OpenGL ready", "caps", caps.String())

	loop, err := render.NewLoop(cfg, dev, win, queue, transitionSources(cfg, logger), logger.With("component", "render"))
	if err != nil {
		dev.Close()
		return err
	}
	defer loop.Close()

	queue.SetWaker(window.Wake)
	// Runs before the window closes and waits out any wake in flight, so
	// producers never reach glfw after Terminate.
	defer queue.SetWaker(nil)

	if err := ingest.CreateFIFO(cfg.FIFOPath); err != nil {
		return err
	}
	defer func() {
		if err := ingest.RemoveFIFO(cfg.FIFOPath); err != nil {
			logger.Warn("cleanup", "err", err)
		}
	}()

	relaySignals(ctx, cfg, queue, logger)

	ingestLog := logger.With("component", "ingest")
	if cfg.File != "" {
		if err := ingest.PostFile(cfg.File, queue, caps.MaxTextureSize, ingestLog); err != nil {
			logger.Error("startup image", "err", err)
		}
	}
	go func() {
		if _, err := ingest.PostStdin(os.Stdin, queue, caps.MaxTextureSize, ingestLog); err != nil && !errors.Is(err, events.ErrClosed) {
			logger.Error("stdin image", "err", err)
		}
	}()

	channel := ingest.New(cfg.FIFOPath, queue, caps.MaxTextureSize, ingestLog)
	go func() {
		// The reader may stay blocked in open at shutdown; it is abandoned.
		if err := channel.Run(ctx); err != nil {
			_ = queue.Post(events.Event{Kind: events.Fatal, Err: err})
		}
	}()

	if cfg.WatchShaders && len(cfg.Shaders) > 0 && !cfg.NoTransition {
		go func() {
			err := shaders.Watch(ctx, cfg.Shaders, logger.With("component", "shaders"), func(srcs []shaders.Source) {
				_ = queue.Post(events.Event{Kind: events.ReloadShaders, Shaders: srcs})
			})
			if err != nil {
				logger.Warn("shader watcher stopped", "err", err)
			}
		}()
	}

	logger.Info("waiting for images", "fifo", cfg.FIFOPath)
	return loop.Run()
}

// relaySignals turns SIGINT and SIGTERM into a Quit event. SIGQUIT, SIGABRT
// and SIGHUP remove the FIFO and exit at once.
func relaySignals(ctx context.Context, cfg config.Config, queue *events.Queue, logger *log.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGABRT, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				switch sig {
				case syscall.SIGINT, syscall.SIGTERM:
					logger.Info("shutting down", "signal", sig.String())
					_ = queue.Post(events.Event{Kind: events.Quit})
				default:
					logger.Error("fatal signal", "signal", sig.String())
					_ = ingest.RemoveFIFO(cfg.FIFOPath)
					os.Exit(1)
				}
			}
		}
	}()
}
