//go:build unix

package daemon

import "syscall"

// daemonSysProcAttr detaches the spawned daemon into its own session so it
// outlives the client and its terminal.
func daemonSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
