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
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/fsnotify/fsnotify"
	"go.olrik.dev/chorus/internal/core"
	"go.olrik.dev/chorus/internal/db"
	"go.olrik.dev/chorus/internal/ident"
	"go.olrik.dev/chorus/internal/transport"
)

// Server owns exactly one spawned child process and broadcasts its output to
// every attached client. There are only two externally visible states:
// running (child alive, accepting connections) and terminated (child gone,
// process exiting). A server never restarts its child; each restart is a
// fresh daemon process started by a client.
type Server struct {
	cfg     *core.Configuration
	command ident.Command
	id      string

	mu    sync.Mutex
	out   []byte            // everything the child has written, append-only
	conns map[net.Conn]bool // attached clients

	child    *exec.Cmd
	childOut io.ReadCloser
	listener net.Listener

	killOnce     sync.Once
	shutdownOnce sync.Once
	attachOnce   sync.Once
	attached     chan struct{} // closed on the first client attach
	done         chan struct{} // closed when the child has exited
	exitCode     int
	stopped      bool // set under mu once shutdown begins

	database  *db.DB
	sessionID int64
}

func NewServer(cfg *core.Configuration, command ident.Command) *Server {
	return &Server{
		cfg:      cfg,
		command:  command,
		id:       ident.Resolve(command),
		conns:    make(map[net.Conn]bool),
		attached: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run spawns the child, listens on the channel and serves clients until the
// child exits. It returns after cleanup has finished. Losing the listen race
// to another daemon for the same identity is not an error.
func (s *Server) Run() error {
	socketPath := ident.ChannelPath(s.cfg.RuntimeDir, s.id)
	pidPath := ident.PIDPath(s.cfg.RuntimeDir, s.id)

	listener, err := transport.Listen(socketPath)
	if err != nil {
		if errors.Is(err, transport.ErrAddrInUse) {
			slog.Info("Daemon already running for this command", "id", s.id)
			return nil
		}
		return fmt.Errorf("create listener: %w", err)
	}
	s.listener = listener
	os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644)

	if err := s.startChild(); err != nil {
		listener.Close()
		os.Remove(socketPath)
		os.Remove(pidPath)
		return fmt.Errorf("spawn %s: %w", s.command.Path, err)
	}
	slog.Info("Daemon session started",
		"id", s.id, "command", s.command.String(), "pid", s.child.Process.Pid)

	s.openHistory()

	// An interrupt must never orphan the child.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-sigChan
		slog.Info("Signal received, killing child", "signal", sig.String())
		s.killChild()
	}()

	s.watchConfig()

	go s.readChild()
	go func() {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				return // listener closed during shutdown
			}
			go s.handleConnection(conn)
		}
	}()

	<-s.done
	s.awaitFirstClient()
	s.shutdown(socketPath, pidPath)
	return nil
}

// awaitFirstClient holds the channel open when the child exits before anyone
// attached. A short-lived command can finish inside the connector's grace
// window; tearing the socket down right away would strand the spawning client
// with nothing to connect to and no replay.
func (s *Server) awaitFirstClient() {
	select {
	case <-s.attached:
		return
	default:
	}
	slog.Debug("Child exited before first attach, lingering", "grace", s.cfg.SpawnGrace.String())
	select {
	case <-s.attached:
	case <-time.After(s.cfg.SpawnGrace):
	}
}

// startChild spawns the command with its stdout piped back to the server. In
// pty mode the child gets a pseudo-terminal instead, so programs that
// block-buffer on pipes still stream line by line.
func (s *Server) startChild() error {
	cmd := exec.Command(s.command.Path, s.command.Args...)

	if s.cfg.PTY {
		ptmx, err := pty.Start(cmd)
		if err != nil {
			return err
		}
		s.child = cmd
		s.childOut = ptmx
		return nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	// Stderr belongs in the daemon log, not on whatever terminal the
	// spawning client happened to inherit.
	if logFile, err := os.OpenFile(ident.LogPath(s.cfg.RuntimeDir, s.id),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		cmd.Stderr = logFile
		defer logFile.Close()
	} else {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	s.child = cmd
	s.childOut = stdout
	return nil
}

// readChild forwards child output into the buffer and to every attached
// client until the stream ends, then reaps the child and marks the session
// terminated.
func (s *Server) readChild() {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.childOut.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.appendAndBroadcast(chunk)
		}
		if err != nil {
			// EOF on a pipe, EIO on a closed pty
			break
		}
	}

	err := s.child.Wait()
	if s.child.ProcessState != nil {
		s.exitCode = s.child.ProcessState.ExitCode()
	} else if err != nil {
		s.exitCode = -1
	}
	slog.Info("Child exited", "pid", s.child.Process.Pid, "code", s.exitCode)
	close(s.done)
}

// appendAndBroadcast appends a chunk to the output buffer and forwards it to
// every attached client. Append and fan-out happen under one lock so the
// buffer and the live stream can never disagree on chunk order.
func (s *Server) appendAndBroadcast(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.out = append(s.out, chunk...)
	for conn := range s.conns {
		if _, err := conn.Write(chunk); err != nil {
			delete(s.conns, conn)
			conn.Close()
		}
	}
}

// handleConnection replays the full output buffer to a new client and adds it
// to the attached set, both under the buffer lock: a live chunk arriving
// during replay is neither lost nor duplicated. Afterwards any inbound byte
// from the client is a kill request, and EOF is a detach.
func (s *Server) handleConnection(conn net.Conn) {
	s.mu.Lock()
	if len(s.out) > 0 {
		if _, err := conn.Write(s.out); err != nil {
			s.mu.Unlock()
			conn.Close()
			return
		}
	}
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = true
	s.mu.Unlock()
	s.attachOnce.Do(func() { close(s.attached) })
	slog.Debug("Client attached")

	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			slog.Info("Kill requested by client")
			s.killChild()
		}
		if err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
	slog.Debug("Client detached")
}

// killChild terminates the child, escalating to SIGKILL if it ignores
// SIGTERM. Safe to call any number of times, including after the child has
// already exited.
func (s *Server) killChild() {
	s.killOnce.Do(func() {
		if s.child == nil || s.child.Process == nil {
			return
		}
		proc := s.child.Process
		proc.Signal(syscall.SIGTERM)
		go func() {
			select {
			case <-s.done:
			case <-time.After(3 * time.Second):
				slog.Warn("Child ignored SIGTERM, sending SIGKILL")
				proc.Kill()
			}
		}()
	})
}

// shutdown runs exactly once when the session terminates: make sure the child
// is gone, close every client so they see connection-closed, stop listening
// and drop the channel artifacts.
func (s *Server) shutdown(socketPath, pidPath string) {
	s.shutdownOnce.Do(func() {
		s.killChild()

		s.mu.Lock()
		s.stopped = true
		for conn := range s.conns {
			conn.Close()
			delete(s.conns, conn)
		}
		total := int64(len(s.out))
		s.mu.Unlock()

		s.listener.Close()
		os.Remove(socketPath)
		os.Remove(pidPath)

		if s.database != nil {
			if err := s.database.SessionEnded(s.sessionID, s.exitCode, total); err != nil {
				slog.Error("Failed to record session end", "error", err)
			}
			s.database.Close()
		}
		slog.Info("Daemon session ended", "id", s.id, "output_bytes", total)
	})
}

// openHistory starts a session row in the history database. History is best
// effort; the daemon serves fine without it.
func (s *Server) openHistory() {
	if !s.cfg.History.Enabled {
		return
	}
	database, err := db.Open(s.cfg.History.Path)
	if err != nil {
		slog.Error("Failed to open history database", "error", err, "path", s.cfg.History.Path)
		return
	}
	id, err := database.SessionStarted(s.id, s.command.String(), s.child.Process.Pid)
	if err != nil {
		slog.Error("Failed to record session start", "error", err)
		database.Close()
		return
	}
	s.database = database
	s.sessionID = id
}

// watchConfig applies config.hcl edits (currently the log level) without a
// daemon restart.
func (s *Server) watchConfig() {
	configFile := filepath.Join(s.cfg.ConfigPath, core.ConfigFileName)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Debug("Config watcher unavailable", "error", err)
		return
	}
	if err := watcher.Add(configFile); err != nil {
		// No config file is the common case; nothing to watch.
		watcher.Close()
		return
	}

	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, s.reloadConfig)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

func (s *Server) reloadConfig() {
	fresh, err := core.LoadConfig(s.cfg.ConfigPath)
	if err != nil {
		slog.Warn("Config reload failed", "error", err)
		return
	}
	core.SetLogLevel(fresh.Verbose)
	slog.Info("Configuration reloaded", "verbose", fresh.Verbose)
}
