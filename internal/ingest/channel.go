// Package ingest receives encoded images from outside the process, decodes
// them and posts them to the render loop.
//
// A message on the FIFO is one writer session: the reader opens the pipe,
// drains it until every writer has closed and reopens it for the next
// message. Writers should deliver one image each and take turns:
//
//  1. open the FIFO for writing,
//  2. take an exclusive flock on that descriptor,
//  3. write the whole encoded file and close.
//
// The reader takes the same lock once the current writer lets go of it, so
// a cooperating writer does not start while a message is still being
// drained. A writer that attaches before the reader reached EOF still lands
// in the same session; such a payload is split back into its images.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/wallpipe/wallpipe/internal/events"
	"github.com/wallpipe/wallpipe/internal/texture"
)

const (
	// readerNice is the scheduling priority requested for the reader thread.
	readerNice = -10
	readChunk  = 64 << 10
	// lockIdle is how long the reader holds the lock without data before
	// handing it to a writer that attached during the drain.
	lockIdle = 50 * time.Millisecond
)

// Channel reads images from a named pipe. It never touches GPU state; the
// texture size limit is handed in at construction.
type Channel struct {
	path    string
	queue   *events.Queue
	maxSize int
	logger  *log.Logger

	// received, when set, is called with the size of every payload once its
	// images were published.
	received func(size int)
}

func New(path string, queue *events.Queue, maxTextureSize int, logger *log.Logger) *Channel {
	return &Channel{path: path, queue: queue, maxSize: maxTextureSize, logger: logger}
}

// Run serves writers one after another until ctx is done. It returns an
// error only when the pipe cannot be opened. Opening blocks until a writer
// attaches, so cancellation is noticed after the next writer goes away.
func (c *Channel) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	c.raisePriority()

	for {
		if ctx.Err() != nil {
			return nil
		}
		data, err := c.receive()
		if err != nil {
			return err
		}
		err = c.dispatch(data)
		if c.received != nil {
			c.received(len(data))
		}
		if errors.Is(err, events.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// dispatch publishes every image found in one payload.
func (c *Channel) dispatch(data []byte) error {
	if len(data) == 0 {
		c.logger.Debug("writer closed without data")
		return nil
	}
	parts := texture.Split(data)
	if len(parts) > 1 {
		c.logger.Warn("payload held several images, writers overlapped", "images", len(parts), "bytes", len(data))
	}
	for _, part := range parts {
		if err := c.publish(part); err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) raisePriority() {
	tid := unix.Gettid()
	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, readerNice); err != nil {
		c.logger.Warn("could not raise reader priority", "tid", tid, "nice", readerNice, "err", err)
		return
	}
	c.logger.Debug("reader priority raised", "tid", tid, "nice", readerNice)
}

// receive reads one writer session.
func (c *Channel) receive() ([]byte, error) {
	fd, err := openRetry(c.path)
	if err != nil {
		return nil, fmt.Errorf("open fifo %s: %w", c.path, err)
	}
	f := os.NewFile(uintptr(fd), c.path)
	defer f.Close()

	if _, err := waitReadable(fd, -1); err != nil {
		return nil, fmt.Errorf("poll fifo %s: %w", c.path, err)
	}

	data, err := c.drain(f, fd)
	if err != nil {
		// A partial payload is dropped; the next writer starts clean.
		c.logger.Warn("read fifo", "err", err, "bytes", len(data))
		return nil, nil
	}
	return data, nil
}

// drain reads until EOF. A writer holding the lock is read while it writes,
// so a payload larger than the pipe buffer cannot stall it; the reader takes
// the lock as soon as it is free and releases it on every return.
func (c *Channel) drain(f *os.File, fd int) ([]byte, error) {
	var (
		buf    bytes.Buffer
		chunk  = make([]byte, readChunk)
		locked bool
	)
	defer func() {
		if locked {
			unix.Flock(fd, unix.LOCK_UN)
		}
	}()

	for {
		if !locked {
			err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
			switch {
			case err == nil:
				locked = true
			case !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR):
				return buf.Bytes(), fmt.Errorf("lock fifo: %w", err)
			}
		}
		if locked {
			ready, err := waitReadable(fd, lockIdle)
			if err != nil {
				return buf.Bytes(), err
			}
			if !ready {
				// A writer is attached but silent, possibly waiting for
				// the lock.
				unix.Flock(fd, unix.LOCK_UN)
				locked = false
				if _, err := waitReadable(fd, -1); err != nil {
					return buf.Bytes(), err
				}
				continue
			}
		}

		n, err := f.Read(chunk)
		buf.Write(chunk[:n])
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return buf.Bytes(), err
		}
	}
}

func (c *Channel) publish(data []byte) error {
	desc, err := texture.Decode(data, c.maxSize)
	if err != nil {
		c.logger.Warn("dropping image", "bytes", len(data), "err", err)
		return nil
	}
	c.logger.Info("image received", "id", desc.ID, "kind", desc.Kind, "size", fmt.Sprintf("%dx%d", desc.Width, desc.Height), "format", desc.InternalFormat)

	if err := c.queue.Post(events.Event{Kind: events.ImageReady, Image: desc}); err != nil {
		desc.Release()
		return err
	}
	return nil
}

func openRetry(path string) (int, error) {
	for {
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return fd, err
	}
}

// waitReadable blocks until fd has data or its writers hung up. A negative
// timeout waits forever; it reports false when the timeout expired.
func waitReadable(fd int, timeout time.Duration) (bool, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			return true, nil
		}
	}
}
