// Package transport is the capability over the platform's local byte-stream
// channel. The core never touches the socket primitive directly; it listens,
// connects and classifies failures through this package.
package transport

import "errors"

// Failure taxonomy for channel operations. A refused connection (artifact
// present, nobody listening) and a missing artifact require different
// recovery strategies in the connector, so they must stay distinguishable.
var (
	ErrAddrInUse   = errors.New("endpoint already has a listener")
	ErrConnRefused = errors.New("endpoint exists but nothing is listening")
	ErrNotFound    = errors.New("endpoint does not exist")
	ErrPermission  = errors.New("endpoint permission denied")
)
