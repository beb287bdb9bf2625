// Package history keeps a local SQLite index of scenario runs so past
// results are queryable without walking artifact directories.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/uiflow/uiflow/pkg/runner"
)

// Store wraps the run-history database.
type Store struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	duration_ms REAL NOT NULL,
	run_dir TEXT NOT NULL,
	steps_total INTEGER NOT NULL,
	steps_passed INTEGER NOT NULL,
	steps_failed INTEGER NOT NULL,
	steps_skipped INTEGER NOT NULL,
	started_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_title ON runs(title);
`

// Open opens (and migrates) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts one finished run.
func (s *Store) Record(res *runner.ScenarioResult) error {
	summary := res.Summarize()
	_, err := s.db.Exec(`
		INSERT INTO runs (title, status, duration_ms, run_dir, steps_total, steps_passed, steps_failed, steps_skipped, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.Title, res.Status, res.DurationMS, res.ArtifactsDir,
		summary.Total, summary.Passed, summary.Failed, summary.Skipped,
		res.StartedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Run is one indexed row.
type Run struct {
	ID         int64
	Title      string
	Status     string
	DurationMS float64
	RunDir     string
	Summary    runner.Summary
	StartedAt  string
}

// List returns the most recent runs, newest first. A non-empty title
// filters; limit <= 0 means 20.
func (s *Store) List(title string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, title, status, duration_ms, run_dir,
		       steps_total, steps_passed, steps_failed, steps_skipped, started_at
		FROM runs`
	args := []any{}
	if title != "" {
		query += " WHERE title = ?"
		args = append(args, title)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Title, &r.Status, &r.DurationMS, &r.RunDir,
			&r.Summary.Total, &r.Summary.Passed, &r.Summary.Failed, &r.Summary.Skipped, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
