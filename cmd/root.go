package cmd

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.olrik.dev/chorus/internal/core"
	"go.olrik.dev/chorus/internal/daemon"
	"go.olrik.dev/chorus/internal/ident"
)

// Mode runners, as package variables so tests can intercept dispatch.
var (
	runDaemonMode  = runDaemon
	runKillMode    = daemon.Kill
	runAttachMode  = daemon.Attach
	runRestartMode = daemon.Restart
	runHistoryMode = runHistory
)

func NewRootCommand() *cobra.Command {
	var (
		configPath  string
		verbose     int
		daemonMode  bool
		killMode    bool
		restartMode bool
		historyMode bool
		usePTY      bool
	)

	homeDir, _ := os.UserHomeDir()

	rootCmd := &cobra.Command{
		Use:   "chorus [flags] COMMAND [ARGS...]",
		Short: "Chorus - share one command between invocations",
		Long: `Chorus - share one command between invocations.

The first invocation of a command line spawns it under a detached daemon and
streams its output. Every further invocation of the same command line attaches
to the running daemon, replays everything produced so far, then follows the
live stream. The daemon exits when its command does.`,
		Version:       core.FormatVersion(core.Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := core.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if verbose > cfg.Verbose {
				cfg.Verbose = verbose
			}
			if usePTY {
				cfg.PTY = true
			}
			core.SetupLogging(os.Stderr, cfg.Verbose)

			if historyMode {
				return runHistoryMode(cfg, args)
			}
			if len(args) == 0 {
				return errors.New("missing command: usage: chorus [--kill|--restart] COMMAND [ARGS...]")
			}
			command := ident.Command{Path: args[0], Args: args[1:]}

			switch {
			case daemonMode:
				return runDaemonMode(cfg, command)
			case killMode:
				return runKillMode(cfg, command)
			case restartMode:
				return stream(runRestartMode(cfg, command))
			default:
				return stream(runAttachMode(cfg, command))
			}
		},
	}

	// The first non-flag token is the child command; everything after it,
	// including further "--" tokens, belongs to the child verbatim.
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.Flags().StringVar(
		&configPath, "config-path", fmt.Sprintf("%s/%s", homeDir, core.BaseDirName),
		"config path",
	)
	rootCmd.Flags().CountVarP(&verbose, "verbose", "v", "more output, repeat for even more")
	rootCmd.Flags().BoolVar(&daemonMode, "daemon", false, "run as the daemon for COMMAND")
	rootCmd.Flags().MarkHidden("daemon")
	rootCmd.Flags().BoolVar(&killMode, "kill", false, "terminate the shared command")
	rootCmd.Flags().BoolVar(&restartMode, "restart", false, "kill the shared command, respawn it and stream")
	rootCmd.Flags().BoolVar(&historyMode, "history", false, "show recent daemon sessions")
	rootCmd.Flags().BoolVar(&usePTY, "pty", false, "run COMMAND on a pseudo-terminal")

	return rootCmd
}

func stream(conn net.Conn, err error) error {
	if err != nil {
		return err
	}
	defer conn.Close()
	return daemon.Stream(conn)
}

// runDaemon runs this invocation as the server. The daemon is detached from
// any terminal, so it logs to a file next to the socket.
func runDaemon(cfg *core.Configuration, command ident.Command) error {
	id := ident.Resolve(command)
	logFile, err := os.OpenFile(
		ident.LogPath(cfg.RuntimeDir, id),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644,
	)
	if err == nil {
		core.SetupLogging(logFile, cfg.Verbose)
		defer logFile.Close()
	}

	return daemon.NewServer(cfg, command).Run()
}
