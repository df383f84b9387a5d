package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.SpawnGrace != 250*time.Millisecond {
		t.Errorf("unexpected default spawn grace: %v", cfg.SpawnGrace)
	}
	if cfg.RestartDelay != 500*time.Millisecond {
		t.Errorf("unexpected default restart delay: %v", cfg.RestartDelay)
	}
	if cfg.SpawnAttempts != 3 {
		t.Errorf("unexpected default spawn attempts: %d", cfg.SpawnAttempts)
	}
	if cfg.PTY {
		t.Error("pty should default to off")
	}
	if !cfg.History.Enabled {
		t.Error("history should default to enabled")
	}
	if cfg.History.Path != filepath.Join(dir, HistoryDBName) {
		t.Errorf("unexpected default history path: %q", cfg.History.Path)
	}
	if cfg.RuntimeDir == "" {
		t.Error("runtime dir should never be empty")
	}
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
verbose        = 1
runtime_dir    = "/tmp/chorus-test"
spawn_grace    = "1s"
restart_delay  = "2s"
spawn_attempts = 5
pty            = true

history {
  enabled = false
  path    = "/tmp/other.db"
}
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Verbose != 1 {
		t.Errorf("verbose = %d, want 1", cfg.Verbose)
	}
	if cfg.RuntimeDir != "/tmp/chorus-test" {
		t.Errorf("runtime_dir = %q", cfg.RuntimeDir)
	}
	if cfg.SpawnGrace != time.Second {
		t.Errorf("spawn_grace = %v, want 1s", cfg.SpawnGrace)
	}
	if cfg.RestartDelay != 2*time.Second {
		t.Errorf("restart_delay = %v, want 2s", cfg.RestartDelay)
	}
	if cfg.SpawnAttempts != 5 {
		t.Errorf("spawn_attempts = %d, want 5", cfg.SpawnAttempts)
	}
	if !cfg.PTY {
		t.Error("pty should be on")
	}
	if cfg.History.Enabled {
		t.Error("history should be disabled")
	}
	if cfg.History.Path != "/tmp/other.db" {
		t.Errorf("history path = %q", cfg.History.Path)
	}
}

func TestLoadConfig_PartialHistoryBlock(t *testing.T) {
	dir := t.TempDir()
	content := `
history {
  path = "/tmp/partial.db"
}
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.History.Enabled {
		t.Error("history enabled default lost when only path is set")
	}
	if cfg.History.Path != "/tmp/partial.db" {
		t.Errorf("history path = %q", cfg.History.Path)
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`spawn_grace = "soon"`), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := LoadConfig(dir); err == nil {
		t.Error("expected error for invalid spawn_grace")
	}
}
