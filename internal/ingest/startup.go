package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/wallpipe/wallpipe/internal/events"
	"github.com/wallpipe/wallpipe/internal/texture"
)

// PostFile decodes the image at path and posts it.
func PostFile(path string, queue *events.Queue, maxSize int, logger *log.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("startup image: %w", err)
	}
	return post(data, path, queue, maxSize, logger)
}

// PostStdin posts an image piped on stdin. A terminal on stdin is skipped
// and reported as false.
func PostStdin(stdin *os.File, queue *events.Queue, maxSize int, logger *log.Logger) (bool, error) {
	if isatty.IsTerminal(stdin.Fd()) || isatty.IsCygwinTerminal(stdin.Fd()) {
		return false, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return true, fmt.Errorf("stdin image: %w", err)
	}
	if len(data) == 0 {
		logger.Debug("stdin is empty")
		return true, nil
	}
	return true, post(data, "stdin", queue, maxSize, logger)
}

func post(data []byte, source string, queue *events.Queue, maxSize int, logger *log.Logger) error {
	desc, err := texture.Decode(data, maxSize)
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	logger.Info("startup image", "source", source, "id", desc.ID, "size", fmt.Sprintf("%dx%d", desc.Width, desc.Height))
	if err := queue.Post(events.Event{Kind: events.ImageReady, Image: desc}); err != nil {
		desc.Release()
		return err
	}
	return nil
}
