// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package ledger persists terminal run results in a local SQLite database so
// that past sweeps can be listed and their failed runs relaunched.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/specialistvlad/sweepgrid/internal/run"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// MemoryPath opens a private in-memory ledger.
const MemoryPath = ":memory:"

// Store is a run ledger backed by SQLite.
type Store struct {
	db *sql.DB
}

// Sweep is one invocation of one sweep definition.
type Sweep struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// SweepSummary is a sweep with its recorded run counts.
type SweepSummary struct {
	Sweep
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Open opens (or creates) the ledger at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// One connection: writes are serialized and :memory: stays one database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sweeps (
  id         TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  source     TEXT,
  started_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
  sweep_id   TEXT NOT NULL,
  idx        INTEGER NOT NULL,
  name       TEXT NOT NULL,
  protocol   TEXT NOT NULL,
  state      TEXT NOT NULL,
  exit_code  INTEGER NOT NULL,
  cause      TEXT,
  error      TEXT,
  started_at TEXT,
  ended_at   TEXT,
  args       TEXT,
  log_path   TEXT,
  PRIMARY KEY (sweep_id, name)
);
CREATE INDEX IF NOT EXISTS runs_state ON runs (sweep_id, state);`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// BeginSweep registers a sweep before its runs are recorded.
func (s *Store) BeginSweep(ctx context.Context, sw Sweep) error {
	if sw.ID == "" || sw.Name == "" {
		return errors.New("ledger: sweep id and name are required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sweeps (id, name, source, started_at) VALUES (?, ?, ?, ?)`,
		sw.ID, sw.Name, sw.Source, formatTime(sw.StartedAt))
	if err != nil {
		return fmt.Errorf("insert sweep %s: %w", sw.ID, err)
	}
	return nil
}

// Record stores a terminal result. Results that are still pending or running
// are rejected.
func (s *Store) Record(ctx context.Context, r *run.Result) error {
	if !r.State.Terminal() {
		return fmt.Errorf("ledger: run %s is %s, only terminal results are recorded", r.Name, r.State)
	}
	args, err := json.Marshal(r.Args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (sweep_id, idx, name, protocol, state, exit_code, cause, error, started_at, ended_at, args, log_path)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SweepID, r.Index, r.Name, r.Protocol, r.State.String(), r.ExitCode, string(r.Cause), r.Error,
		formatTime(r.StartedAt), formatTime(r.EndedAt), string(args), r.LogPath,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.Name, err)
	}
	return nil
}

// LookupSweep finds a sweep by id. An unknown id is a ConfigError, since it
// comes from the command line.
func (s *Store) LookupSweep(ctx context.Context, id string) (*Sweep, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, source, started_at FROM sweeps WHERE id = ?`, id)
	sw, err := scanSweep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sweeperr.Configf("rerun-failed", "no sweep with id %q in the ledger", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query sweep %s: %w", id, err)
	}
	return sw, nil
}

// Failed lists the names of a sweep's failed runs, in emission order.
func (s *Store) Failed(ctx context.Context, sweepID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM runs WHERE sweep_id = ? AND state = ? ORDER BY idx`, sweepID, run.Failed.String())
	if err != nil {
		return nil, fmt.Errorf("query failed runs: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Sweeps lists the most recent sweeps first. A limit of zero lists all.
func (s *Store) Sweeps(ctx context.Context, limit int) ([]SweepSummary, error) {
	query := `
SELECT s.id, s.name, s.source, s.started_at,
       COALESCE(SUM(CASE WHEN r.state = 'succeeded' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN r.state = 'failed' THEN 1 ELSE 0 END), 0)
FROM sweeps s LEFT JOIN runs r ON r.sweep_id = s.id
GROUP BY s.id
ORDER BY s.started_at DESC, s.rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sweeps: %w", err)
	}
	defer rows.Close()

	var out []SweepSummary
	for rows.Next() {
		var sum SweepSummary
		var source sql.NullString
		var started string
		if err := rows.Scan(&sum.ID, &sum.Name, &source, &started, &sum.Succeeded, &sum.Failed); err != nil {
			return nil, err
		}
		sum.Source = source.String
		sum.StartedAt = parseTime(started)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Runs returns a sweep's recorded results in emission order.
func (s *Store) Runs(ctx context.Context, sweepID string) ([]*run.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT idx, name, protocol, state, exit_code, cause, error, started_at, ended_at, args, log_path
FROM runs WHERE sweep_id = ? ORDER BY idx`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []*run.Result
	for rows.Next() {
		r := &run.Result{SweepID: sweepID}
		var state string
		var cause, errMsg, started, ended, args, logPath sql.NullString
		if err := rows.Scan(&r.Index, &r.Name, &r.Protocol, &state, &r.ExitCode, &cause, &errMsg, &started, &ended, &args, &logPath); err != nil {
			return nil, err
		}
		if r.State, err = run.ParseState(state); err != nil {
			return nil, err
		}
		r.Cause = sweeperr.Cause(cause.String)
		r.Error = errMsg.String
		r.StartedAt = parseTime(started.String)
		r.EndedAt = parseTime(ended.String)
		r.LogPath = logPath.String
		if strings.TrimSpace(args.String) != "" {
			if err := json.Unmarshal([]byte(args.String), &r.Args); err != nil {
				return nil, fmt.Errorf("decode args of %s: %w", r.Name, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSweep(row *sql.Row) (*Sweep, error) {
	var sw Sweep
	var source sql.NullString
	var started string
	if err := row.Scan(&sw.ID, &sw.Name, &source, &started); err != nil {
		return nil, err
	}
	sw.Source = source.String
	sw.StartedAt = parseTime(started)
	return &sw, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
