//go:build unix

package transport

import (
	"errors"
	"fmt"
	"io/fs"
	"net"

	"golang.org/x/sys/unix"
)

// Listen binds the channel path exclusively. A second listen against the same
// path fails with ErrAddrInUse; that failure is the single-instance
// arbitration for the whole system. Closing the listener removes the socket
// file.
func Listen(path string) (net.Listener, error) {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, classify("listen", path, err)
	}
	return ln, nil
}

// Connect dials the channel path.
func Connect(path string) (net.Conn, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, classify("connect", path, err)
	}
	return conn, nil
}

func classify(op, path string, err error) error {
	switch {
	case errors.Is(err, unix.EADDRINUSE):
		return fmt.Errorf("%s %s: %w", op, path, ErrAddrInUse)
	case errors.Is(err, unix.ECONNREFUSED):
		return fmt.Errorf("%s %s: %w", op, path, ErrConnRefused)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, unix.ENOENT):
		return fmt.Errorf("%s %s: %w", op, path, ErrNotFound)
	case errors.Is(err, fs.ErrPermission), errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return fmt.Errorf("%s %s: %w", op, path, ErrPermission)
	default:
		return err
	}
}
