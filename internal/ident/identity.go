// Package ident derives stable endpoint identifiers from command invocation
// signatures. Identical command lines share a daemon; different command lines
// land on different channels.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"runtime"
	"strings"
)

// Command is the immutable invocation signature a daemon is keyed on.
type Command struct {
	Path string
	Args []string
}

// String returns the command as a single line for logs and history rows.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return c.Path + " " + strings.Join(c.Args, " ")
}

// Resolve derives the endpoint identifier for a command. The same
// (path, args) always yields the same identifier across process restarts;
// any differing element changes it. Arguments are NUL-separated in the hash
// input so ["a b"] and ["a", "b"] stay distinct.
func Resolve(c Command) string {
	h := sha256.New()
	h.Write([]byte(c.Path))
	for _, arg := range c.Args {
		h.Write([]byte{0})
		h.Write([]byte(arg))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ChannelPath returns the platform channel path for an endpoint identifier:
// a socket file under the runtime dir on unix, a named pipe on Windows.
func ChannelPath(runtimeDir, id string) string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\daemon-` + id
	}
	return filepath.Join(runtimeDir, "daemon-"+id+".sock")
}

// PIDPath returns the daemon pidfile path for an endpoint identifier.
func PIDPath(runtimeDir, id string) string {
	return filepath.Join(runtimeDir, "daemon-"+id+".pid")
}

// LockPath returns the client-side spawn lock path for an endpoint identifier.
func LockPath(runtimeDir, id string) string {
	return filepath.Join(runtimeDir, "daemon-"+id+".lock")
}

// LogPath returns the daemon log file path for an endpoint identifier.
func LogPath(runtimeDir, id string) string {
	return filepath.Join(runtimeDir, "daemon-"+id+".log")
}
