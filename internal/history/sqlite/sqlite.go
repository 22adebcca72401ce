package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pondside/heartbeat/internal/history"
)

// DB implements history.Store for SQLite (modernc.org/sqlite driver,
// CGO-free). Path is a filesystem path; use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticks(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			skipped BOOLEAN NOT NULL,
			blocking_pid INTEGER NOT NULL DEFAULT 0,
			exit_code INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_started_at ON ticks(started_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) RecordTick(ctx context.Context, rec history.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticks(started_at, finished_at, skipped, blocking_pid, exit_code)
		VALUES(?, ?, ?, ?, ?);`,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(), rec.Skipped, rec.BlockingPID, rec.ExitCode)
	return err
}

func (s *DB) Recent(ctx context.Context, limit int) ([]history.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, skipped, blocking_pid, exit_code
		FROM ticks ORDER BY id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []history.Record
	for rows.Next() {
		var rec history.Record
		var started, finished time.Time
		if err := rows.Scan(&rec.ID, &started, &finished, &rec.Skipped, &rec.BlockingPID, &rec.ExitCode); err != nil {
			return nil, err
		}
		rec.StartedAt = started
		rec.FinishedAt = finished
		out = append(out, rec)
	}
	return out, rows.Err()
}
