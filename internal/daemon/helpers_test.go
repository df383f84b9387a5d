package daemon

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"go.olrik.dev/chorus/internal/core"
)

// shortTempDir creates a short temp directory to avoid unix socket path
// length limits.
func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "ch-")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// quietLogger silences the default logger for the duration of a test.
func quietLogger(t *testing.T) {
	t.Helper()
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig(t *testing.T) *core.Configuration {
	t.Helper()
	return &core.Configuration{
		ConfigPath:    shortTempDir(t),
		RuntimeDir:    shortTempDir(t),
		SpawnGrace:    250 * time.Millisecond,
		RestartDelay:  100 * time.Millisecond,
		SpawnAttempts: 3,
		History:       core.HistoryConfig{Enabled: false},
	}
}

// waitForFile polls for a path to appear.
func waitForFile(t *testing.T, path string) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("file %s did not appear", path)
}
