package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite session-history database. Only session metadata is
// recorded here; child output itself is never persisted.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the history database at the specified path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode so a --history reader never blocks the daemon's writes
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close checkpoints the WAL and closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return db.conn.Close()
	}
	return nil
}

func (db *DB) initSchema() error {
	schema := `
	-- One row per daemon session (one spawned child process)
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		endpoint_id TEXT NOT NULL,
		command TEXT NOT NULL,
		pid INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		exit_code INTEGER,
		output_bytes INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_endpoint ON sessions(endpoint_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SessionStarted records a new daemon session and returns its row id.
func (db *DB) SessionStarted(endpointID, command string, pid int) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT INTO sessions (endpoint_id, command, pid, started_at) VALUES (?, ?, ?, ?)",
		endpointID, command, pid, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record session start: %w", err)
	}
	return result.LastInsertId()
}

// SessionEnded finalizes a session row with the child's exit code and the
// total output volume it produced.
func (db *DB) SessionEnded(id int64, exitCode int, outputBytes int64) error {
	_, err := db.conn.Exec(
		"UPDATE sessions SET ended_at = ?, exit_code = ?, output_bytes = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), exitCode, outputBytes, id,
	)
	if err != nil {
		return fmt.Errorf("failed to record session end: %w", err)
	}
	return nil
}

// Session is one recorded daemon session.
type Session struct {
	EndpointID  string
	Command     string
	PID         int
	StartedAt   time.Time
	EndedAt     *time.Time // nil while the session is still running
	ExitCode    *int       // nil while the session is still running
	OutputBytes int64
}

// RecentSessions returns up to limit sessions, newest first. A non-empty
// endpointID restricts the result to one command identity.
func (db *DB) RecentSessions(endpointID string, limit int) ([]Session, error) {
	query := "SELECT endpoint_id, command, pid, started_at, ended_at, exit_code, output_bytes FROM sessions"
	args := []any{}
	if endpointID != "" {
		query += " WHERE endpoint_id = ?"
		args = append(args, endpointID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var startedAt string
		var endedAt sql.NullString
		var exitCode sql.NullInt64
		if err := rows.Scan(&s.EndpointID, &s.Command, &s.PID, &startedAt, &endedAt, &exitCode, &s.OutputBytes); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			s.StartedAt = t
		}
		if endedAt.Valid {
			if t, err := time.Parse(time.RFC3339, endedAt.String); err == nil {
				s.EndedAt = &t
			}
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			s.ExitCode = &code
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
