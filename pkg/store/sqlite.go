// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	rferrors "github.com/reconflow/reconflow/pkg/errors"
	"github.com/reconflow/reconflow/pkg/workflow"
)

// SQLiteStore is the durable Run-State Store backend (spec.md §4.8).
type SQLiteStore struct {
	db *sql.DB
}

// Config configures a SQLiteStore.
type Config struct {
	// Path is the database file path, or ":memory:" for an ephemeral
	// in-process database.
	Path string

	// MaxOpenConns bounds the connection pool; WAL mode lets multiple
	// readers proceed concurrently with one writer.
	MaxOpenConns int
}

// Open creates (if needed) and migrates a SQLiteStore.
func Open(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, &rferrors.ConfigError{Key: "store.path", Reason: "database path is required"}
	}

	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, &rferrors.ConfigError{Key: "store.path", Reason: "failed to open database", Cause: err}
	}

	maxConns := cfg.MaxOpenConns
	if maxConns == 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &rferrors.ConfigError{Key: "store.path", Reason: "failed to connect to database", Cause: err}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			user_id TEXT,
			workflow_name TEXT NOT NULL,
			target TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			completed_at INTEGER,
			results_blob TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS steps (
			step_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			task_name TEXT NOT NULL,
			tool_or_type TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at INTEGER,
			completed_at INTEGER,
			output TEXT,
			errors TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_run_id ON steps(run_id)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return &rferrors.ConfigError{Key: "store.migrate", Reason: fmt.Sprintf("migration failed: %v", err), Cause: err}
		}
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *workflow.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, user_id, workflow_name, target, status, started_at, completed_at, results_blob)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.UserID, run.WorkflowName, run.Target, string(run.Status),
		run.StartedAt.UnixNano(), nullableTime(run.CompletedAt), run.ResultsBlob)
	return err
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *workflow.RunRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, results_blob = ? WHERE run_id = ?`,
		string(run.Status), nullableTime(run.CompletedAt), run.ResultsBlob, run.RunID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &rferrors.NotFoundError{Resource: "run", ID: run.RunID}
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*workflow.RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, user_id, workflow_name, target, status, started_at, completed_at, results_blob
		 FROM runs WHERE run_id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*workflow.RunRecord, error) {
	query := `SELECT run_id, user_id, workflow_name, target, status, started_at, completed_at, results_blob
	          FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*workflow.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// rowScanner abstracts over *sql.Row and *sql.Rows, which share Scan
// but not a common interface in database/sql.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*workflow.RunRecord, error) {
	var run workflow.RunRecord
	var startedAt int64
	var completedAt sql.NullInt64
	var status string

	if err := row.Scan(&run.RunID, &run.UserID, &run.WorkflowName, &run.Target, &status,
		&startedAt, &completedAt, &run.ResultsBlob); err != nil {
		if err == sql.ErrNoRows {
			return nil, &rferrors.NotFoundError{Resource: "run", ID: ""}
		}
		return nil, err
	}
	run.Status = workflow.RunStatus(status)
	run.StartedAt = time.Unix(0, startedAt)
	if completedAt.Valid {
		run.CompletedAt = time.Unix(0, completedAt.Int64)
	}
	return &run, nil
}

func (s *SQLiteStore) CreateStep(ctx context.Context, step *workflow.StepRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO steps (step_id, run_id, task_name, tool_or_type, status, started_at, completed_at, output, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.StepID, step.RunID, step.TaskName, step.ToolOrType, string(step.Status),
		nullableTime(step.StartedAt), nullableTime(step.CompletedAt), step.Output, step.Errors)
	return err
}

func (s *SQLiteStore) UpdateStep(ctx context.Context, step *workflow.StepRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE steps SET status = ?, completed_at = ?, output = ?, errors = ? WHERE step_id = ?`,
		string(step.Status), nullableTime(step.CompletedAt), step.Output, step.Errors, step.StepID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &rferrors.NotFoundError{Resource: "step", ID: step.StepID}
	}
	return nil
}

func (s *SQLiteStore) ListSteps(ctx context.Context, runID string) ([]*workflow.StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step_id, run_id, task_name, tool_or_type, status, started_at, completed_at, output, errors
		 FROM steps WHERE run_id = ? ORDER BY started_at ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*workflow.StepRecord
	for rows.Next() {
		var step workflow.StepRecord
		var startedAt, completedAt sql.NullInt64
		var status string
		if err := rows.Scan(&step.StepID, &step.RunID, &step.TaskName, &step.ToolOrType, &status,
			&startedAt, &completedAt, &step.Output, &step.Errors); err != nil {
			return nil, err
		}
		step.Status = workflow.TaskStatus(status)
		if startedAt.Valid {
			step.StartedAt = time.Unix(0, startedAt.Int64)
		}
		if completedAt.Valid {
			step.CompletedAt = time.Unix(0, completedAt.Int64)
		}
		out = append(out, &step)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}
