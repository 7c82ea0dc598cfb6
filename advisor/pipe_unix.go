//go:build unix

package advisor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// writePipe writes data to the named pipe at path without ever blocking.
// A non-empty reason means the write was skipped for an expected condition
// (no reader, pipe full, pipe missing); err reports anything else.
func writePipe(path string, data []byte) (reason string, err error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		switch {
		case errors.Is(err, unix.ENXIO):
			return "no_reader", nil
		case errors.Is(err, unix.ENOENT):
			return "missing", nil
		}
		return "", fmt.Errorf("opening advice pipe: %w", err)
	}
	defer func() { _ = unix.Close(fd) }()

	n, err := unix.Write(fd, data)
	if err != nil {
		switch {
		case errors.Is(err, unix.EAGAIN):
			return "full", nil
		case errors.Is(err, unix.EPIPE):
			return "no_reader", nil
		}
		return "", fmt.Errorf("writing advice pipe: %w", err)
	}
	if n < len(data) {
		return "", fmt.Errorf("short write to advice pipe: %d of %d bytes", n, len(data))
	}
	return "", nil
}

// EnsurePipe creates a named pipe at path unless one already exists.
func EnsurePipe(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if info.Mode()&os.ModeNamedPipe == 0 {
			return fmt.Errorf("%s exists and is not a named pipe", path)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat advice pipe: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating advice pipe directory: %w", err)
	}
	if err := unix.Mkfifo(path, 0o666); err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("creating advice pipe: %w", err)
	}
	return nil
}
