package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

const (
	BaseDirName    = ".config/chorus"
	ConfigFileName = "config.hcl"
	HistoryDBName  = "chorus.db"
)

// Configuration is the resolved runtime configuration. Every field has a
// default; the config file only overrides.
type Configuration struct {
	ConfigPath    string        // directory holding config.hcl and the history database
	Verbose       int           // log verbosity, raised by -v
	RuntimeDir    string        // directory for channel artifacts (sockets, pidfiles, locks)
	SpawnGrace    time.Duration // how long a client waits for a freshly spawned daemon to listen
	RestartDelay  time.Duration // kill-to-respawn delay for --restart
	SpawnAttempts int           // cap on the connector's spawn-then-reconnect cycles
	PTY           bool          // run the child on a pseudo-terminal
	History       HistoryConfig
}

type HistoryConfig struct {
	Enabled bool
	Path    string
}

// HCL parsing structs

type hclConfig struct {
	Verbose       int         `hcl:"verbose,optional"`
	RuntimeDir    string      `hcl:"runtime_dir,optional"`
	SpawnGrace    string      `hcl:"spawn_grace,optional"`
	RestartDelay  string      `hcl:"restart_delay,optional"`
	SpawnAttempts int         `hcl:"spawn_attempts,optional"`
	PTY           bool        `hcl:"pty,optional"`
	History       *hclHistory `hcl:"history,block"`
}

type hclHistory struct {
	Enabled *bool  `hcl:"enabled,optional"`
	Path    string `hcl:"path,optional"`
}

// LoadConfig reads config.hcl under configPath, applying defaults for
// everything the file leaves out. A missing file yields pure defaults.
func LoadConfig(configPath string) (*Configuration, error) {
	cfg := &Configuration{
		ConfigPath:    configPath,
		RuntimeDir:    defaultRuntimeDir(),
		SpawnGrace:    250 * time.Millisecond,
		RestartDelay:  500 * time.Millisecond,
		SpawnAttempts: 3,
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(configPath, HistoryDBName),
		},
	}

	configFile := filepath.Join(configPath, ConfigFileName)
	if _, err := os.Stat(configFile); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	raw := &hclConfig{}
	if err := hclsimple.DecodeFile(configFile, nil, raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFile, err)
	}

	cfg.Verbose = raw.Verbose
	if raw.RuntimeDir != "" {
		cfg.RuntimeDir = raw.RuntimeDir
	}
	if raw.SpawnGrace != "" {
		d, err := time.ParseDuration(raw.SpawnGrace)
		if err != nil {
			return nil, fmt.Errorf("invalid spawn_grace: %w", err)
		}
		cfg.SpawnGrace = d
	}
	if raw.RestartDelay != "" {
		d, err := time.ParseDuration(raw.RestartDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid restart_delay: %w", err)
		}
		cfg.RestartDelay = d
	}
	if raw.SpawnAttempts > 0 {
		cfg.SpawnAttempts = raw.SpawnAttempts
	}
	cfg.PTY = raw.PTY
	if raw.History != nil {
		if raw.History.Enabled != nil {
			cfg.History.Enabled = *raw.History.Enabled
		}
		if raw.History.Path != "" {
			cfg.History.Path = raw.History.Path
		}
	}

	return cfg, nil
}

// defaultRuntimeDir prefers the per-user runtime directory and falls back to
// the system temp dir, which also keeps socket paths short on macOS.
func defaultRuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}
