package shaders

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// settle coalesces the burst of events an editor produces for one save.
const settle = 150 * time.Millisecond

// Watch reloads paths whenever one of them changes and passes the new set
// to onChange. Directories are watched rather than files so editors that
// replace files by rename keep being followed. Watch blocks until ctx is
// done.
func Watch(ctx context.Context, paths []string, logger *log.Logger, onChange func([]Source)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("shader watcher: %w", err)
	}
	defer w.Close()

	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("shader watcher: %w", err)
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("shader watcher: watch %s: %w", d, err)
		}
	}

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(ev.Name)
			if !watched[abs] || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("shader changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			trigger = timer.C
		case <-trigger:
			trigger = nil
			srcs, errs := LoadFiles(paths)
			for _, err := range errs {
				logger.Warn("shader reload", "err", err)
			}
			onChange(srcs)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("shader watcher", "err", err)
		}
	}
}
