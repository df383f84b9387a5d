//go:build !unix

package daemon

import "syscall"

func daemonSysProcAttr() *syscall.SysProcAttr {
	return nil
}
