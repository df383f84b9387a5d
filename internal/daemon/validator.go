package daemon

import (
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"go.olrik.dev/chorus/internal/ident"
)

// DaemonAlive reports whether the pidfile for id names a live process that
// still looks like a daemon. This guards stale-artifact cleanup against PID
// reuse and against deleting the endpoint of a daemon that is mid-startup.
func DaemonAlive(runtimeDir, id string) bool {
	data, err := os.ReadFile(ident.PIDPath(runtimeDir, id))
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	cmdline, err := proc.Cmdline()
	if err != nil {
		return false
	}
	// The PID may have been reused by an unrelated process since the daemon
	// died; only a daemon-mode invocation counts.
	return strings.Contains(cmdline, "--daemon")
}
