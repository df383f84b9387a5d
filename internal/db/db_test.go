package db

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "chorus.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSessionLifecycle(t *testing.T) {
	database := openTestDB(t)

	id, err := database.SessionStarted("abcd1234", "/bin/echo hello", 4242)
	if err != nil {
		t.Fatalf("SessionStarted failed: %v", err)
	}

	sessions, err := database.RecentSessions("", 10)
	if err != nil {
		t.Fatalf("RecentSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.EndpointID != "abcd1234" || s.Command != "/bin/echo hello" || s.PID != 4242 {
		t.Errorf("unexpected session row: %+v", s)
	}
	if s.EndedAt != nil || s.ExitCode != nil {
		t.Error("session should be open until SessionEnded")
	}
	if s.StartedAt.IsZero() {
		t.Error("started_at not recorded")
	}

	if err := database.SessionEnded(id, 2, 1024); err != nil {
		t.Fatalf("SessionEnded failed: %v", err)
	}

	sessions, err = database.RecentSessions("", 10)
	if err != nil {
		t.Fatalf("RecentSessions failed: %v", err)
	}
	s = sessions[0]
	if s.EndedAt == nil || s.ExitCode == nil {
		t.Fatal("session not finalized")
	}
	if *s.ExitCode != 2 {
		t.Errorf("exit code = %d, want 2", *s.ExitCode)
	}
	if s.OutputBytes != 1024 {
		t.Errorf("output bytes = %d, want 1024", s.OutputBytes)
	}
}

func TestRecentSessions_FilterAndOrder(t *testing.T) {
	database := openTestDB(t)

	if _, err := database.SessionStarted("aaaa", "/bin/echo one", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := database.SessionStarted("bbbb", "/bin/echo two", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := database.SessionStarted("aaaa", "/bin/echo three", 3); err != nil {
		t.Fatal(err)
	}

	sessions, err := database.RecentSessions("aaaa", 10)
	if err != nil {
		t.Fatalf("RecentSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions for endpoint aaaa, got %d", len(sessions))
	}
	// Newest first
	if sessions[0].PID != 3 || sessions[1].PID != 1 {
		t.Errorf("unexpected ordering: pids %d, %d", sessions[0].PID, sessions[1].PID)
	}

	limited, err := database.RecentSessions("", 2)
	if err != nil {
		t.Fatalf("RecentSessions failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit not applied, got %d rows", len(limited))
	}
}
