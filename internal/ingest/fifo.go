package ingest

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FIFOMode is the permission the named pipe is created with.
const FIFOMode = 0o644

// CreateFIFO replaces whatever is at path with a fresh named pipe.
func CreateFIFO(path string) error {
	if err := unix.Unlink(path); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("remove stale fifo %s: %w", path, err)
	}
	if err := unix.Mkfifo(path, FIFOMode); err != nil {
		return fmt.Errorf("create fifo %s: %w", path, err)
	}
	return nil
}

// RemoveFIFO deletes the pipe. A pipe that is already gone is not an error.
func RemoveFIFO(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove fifo %s: %w", path, err)
	}
	return nil
}
