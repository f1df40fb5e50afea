// Package history records sandbox runs in a local SQLite database so engine
// version drift shows up as a diffable trail: the same guide digest failing
// under a new server version is the regression signal the guide maintainers
// watch for.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"sqlguide/pkg/report"
)

const defaultPath = "sqlguide-history.db"

// Store is a SQLite-backed run log.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one recorded run, without the full report payload.
type Entry struct {
	ID            int64     `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	GuideDigest   string    `json:"guide_digest"`
	EngineVersion string    `json:"engine_version"`
	Sections      int       `json:"sections"`
	Statements    int       `json:"statements"`
	Failures      int       `json:"failures"`
}

// Open creates or opens the history database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at     TEXT NOT NULL,
		finished_at    TEXT NOT NULL,
		guide_digest   TEXT NOT NULL,
		engine_version TEXT NOT NULL,
		sections       INTEGER NOT NULL,
		statements     INTEGER NOT NULL,
		failures       INTEGER NOT NULL,
		report         BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores the report and returns the new run id.
func (s *Store) Record(ctx context.Context, rep report.Report) (int64, error) {
	payload, err := rep.Encode()
	if err != nil {
		return 0, fmt.Errorf("encode report: %w", err)
	}
	sum := rep.Summarize()
	res, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(started_at, finished_at, guide_digest, engine_version, sections, statements, failures, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.StartedAt.UTC().Format(time.RFC3339Nano),
		rep.FinishedAt.UTC().Format(time.RFC3339Nano),
		rep.GuideDigest,
		rep.EngineVersion,
		sum.Sections,
		sum.Statements,
		sum.Failures,
		payload,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	return id, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, started_at, finished_at, guide_digest, engine_version, sections, statements, failures
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, finished string
		if err := rows.Scan(&e.ID, &started, &finished, &e.GuideDigest, &e.EngineVersion,
			&e.Sections, &e.Statements, &e.Failures); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if e.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if e.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return entries, nil
}

// Report loads the full report payload of a recorded run.
func (s *Store) Report(ctx context.Context, id int64) (report.Report, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("select run %d: %w", id, err)
	}
	return report.Decode(payload)
}
