//go:build !unix

package transport

import (
	"errors"
	"net"
)

// Named-pipe support needs a platform shim this build does not carry yet.

func Listen(path string) (net.Listener, error) {
	return nil, errors.ErrUnsupported
}

func Connect(path string) (net.Conn, error) {
	return nil, errors.ErrUnsupported
}
