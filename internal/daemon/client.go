package daemon

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"go.olrik.dev/chorus/internal/core"
	"go.olrik.dev/chorus/internal/ident"
	"go.olrik.dev/chorus/internal/transport"
)

// killByte is the kill-request wire format. The server reacts to the presence
// of any inbound byte, not its value.
var killByte = []byte{'k'}

// Attach returns a connection to the daemon owning command, spawning one when
// nothing is listening. Recoverable channel states — a stale artifact or no
// artifact at all — are absorbed here; everything else propagates. The
// spawn-then-reconnect cycle is capped by SpawnAttempts so a child that can
// never start does not loop forever.
func Attach(cfg *core.Configuration, command ident.Command) (net.Conn, error) {
	id := ident.Resolve(command)
	socketPath := ident.ChannelPath(cfg.RuntimeDir, id)

	var lastErr error
	for attempt := 0; attempt <= cfg.SpawnAttempts; attempt++ {
		conn, err := transport.Connect(socketPath)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if errors.Is(err, transport.ErrConnRefused) {
			if DaemonAlive(cfg.RuntimeDir, id) {
				// The owning daemon still exists; give it a moment instead
				// of deleting its endpoint out from under it.
				slog.Debug("Endpoint refused but daemon process alive, retrying", "id", id)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			slog.Debug("Removing stale channel artifact", "path", socketPath)
			if rmErr := os.Remove(socketPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				return nil, fmt.Errorf("remove stale endpoint %s: %w", socketPath, rmErr)
			}
		} else if !errors.Is(err, transport.ErrNotFound) {
			// Permission problems and the like are not recoverable locally.
			return nil, err
		}

		if attempt < cfg.SpawnAttempts {
			if err := spawnAndWait(cfg, command, socketPath); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("daemon did not come up after %d attempts: %w", cfg.SpawnAttempts, lastErr)
}

// spawnAndWait launches a detached daemon-mode copy of this binary for
// command, then waits out the spawn grace period for its listener. The
// per-identity file lock keeps two racing clients from both spawning; the
// loser just waits for the winner's daemon to appear.
func spawnAndWait(cfg *core.Configuration, command ident.Command, socketPath string) error {
	id := ident.Resolve(command)

	lock := flock.New(ident.LockPath(cfg.RuntimeDir, id))
	locked, err := lock.TryLock()
	if err != nil {
		slog.Debug("Spawn lock unavailable", "error", err)
	} else if !locked {
		slog.Debug("Another client is spawning this daemon", "id", id)
		waitForEndpoint(socketPath, cfg.SpawnGrace)
		return nil
	} else {
		defer lock.Unlock()
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	cmd := exec.Command(exe, daemonArgs(cfg, command)...)
	cmd.SysProcAttr = daemonSysProcAttr()
	cmd.Stdin = nil
	cmd.Stdout = nil
	// Early fatal errors stay visible on the invoking terminal; the daemon
	// switches to its own log file before serving.
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn daemon: %w", err)
	}
	slog.Debug("Daemon process launched", "pid", cmd.Process.Pid, "id", id)
	cmd.Process.Release()

	waitForEndpoint(socketPath, cfg.SpawnGrace)
	return nil
}

// daemonArgs builds the argv for a daemon-mode re-exec of this binary. The
// client's verbosity travels along so the daemon log honors -v.
func daemonArgs(cfg *core.Configuration, command ident.Command) []string {
	args := []string{"--daemon", "--config-path", cfg.ConfigPath}
	for i := 0; i < cfg.Verbose; i++ {
		args = append(args, "-v")
	}
	if cfg.PTY {
		args = append(args, "--pty")
	}
	args = append(args, command.Path)
	args = append(args, command.Args...)
	return args
}

// waitForEndpoint polls for the channel artifact, returning as soon as it
// appears. The grace period is an upper bound, not a fixed sleep.
func waitForEndpoint(path string, grace time.Duration) {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// Kill asks the daemon owning command to terminate its child. It does not
// wait for the daemon to actually exit; kill bytes sent after the child is
// already gone are harmless.
func Kill(cfg *core.Configuration, command ident.Command) error {
	conn, err := Attach(cfg, command)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(killByte); err != nil {
		return fmt.Errorf("send kill request: %w", err)
	}
	return nil
}

// Restart kills the current daemon, waits for it to release the channel, and
// attaches to a fresh one. The returned connection streams the new child's
// output from an empty buffer.
func Restart(cfg *core.Configuration, command ident.Command) (net.Conn, error) {
	if err := Kill(cfg, command); err != nil {
		return nil, err
	}
	time.Sleep(cfg.RestartDelay)
	return Attach(cfg, command)
}

// Stream copies everything the daemon sends to stdout until the connection
// closes. An interrupt closes the connection and detaches; the shared child
// is unaffected by a client leaving.
func Stream(conn net.Conn) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		conn.Close()
	}()

	if _, err := io.Copy(os.Stdout, conn); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("stream output: %w", err)
	}
	return nil
}
