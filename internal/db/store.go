// Package db provides the SQLite run history for ralph.
package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// OutcomeRunning marks a run that has not finished (or crashed before finishing).
const OutcomeRunning = "running"

// Store provides persistence for runs and iterations.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a store for run history.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID            string `yaml:"run_id"`
	StartedAt        string `yaml:"started_at"`
	EndedAt          string `yaml:"ended_at,omitempty"`
	RunDir           string `yaml:"run_dir"`
	Branch           string `yaml:"branch"`
	Tool             string `yaml:"tool"`
	MaxIterations    int    `yaml:"max_iterations"`
	Iterations       int    `yaml:"iterations"`
	Outcome          string `yaml:"outcome"`
	StoriesCompleted int    `yaml:"stories_completed"`
	StoriesTotal     int    `yaml:"stories_total"`
}

// IterationRecord is one row of the iterations table.
type IterationRecord struct {
	RunID     string
	Iteration int
	StartedAt time.Time
	EndedAt   time.Time
	ExitCode  int
	Completed bool
	Cancelled bool
}

// RunStart describes a run that is about to enter the loop.
type RunStart struct {
	RunDir        string
	Branch        string
	Tool          string
	MaxIterations int
	StoriesTotal  int
	Completed     int
}

// RunFinish describes how a run ended.
type RunFinish struct {
	Iterations       int
	Outcome          string
	StoriesCompleted int
	StoriesTotal     int
}

// CreateRun inserts a running record and returns its id.
func (s *Store) CreateRun(ctx context.Context, start RunStart) (string, error) {
	runID, err := newRunID(s.now())
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	startedAt := s.now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, `INSERT INTO runs(run_id, started_at, run_dir, branch, tool, max_iterations, iterations, outcome, stories_completed, stories_total)
		VALUES(?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		runID, startedAt, start.RunDir, start.Branch, start.Tool, start.MaxIterations, OutcomeRunning, start.Completed, start.StoriesTotal); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// RecordIteration stores one finished iteration and bumps the run's counter.
func (s *Store) RecordIteration(ctx context.Context, rec IterationRecord) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin record iteration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO iterations(run_id, iteration, started_at, ended_at, exit_code, completed, cancelled)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Iteration,
		rec.StartedAt.UTC().Format(time.RFC3339), rec.EndedAt.UTC().Format(time.RFC3339),
		rec.ExitCode, boolInt(rec.Completed), boolInt(rec.Cancelled)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert iteration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET iterations=? WHERE run_id=?`, rec.Iteration, rec.RunID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update run iterations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record iteration: %w", err)
	}
	return nil
}

// FinishRun stores the final outcome of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, fin RunFinish) error {
	endedAt := s.now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET ended_at=?, iterations=?, outcome=?, stories_completed=?, stories_total=? WHERE run_id=?`,
		endedAt, fin.Iterations, fin.Outcome, fin.StoriesCompleted, fin.StoriesTotal, runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update run: run %s not found", runID)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT run_id, started_at, COALESCE(ended_at, ''), run_dir, branch, tool, max_iterations, iterations, outcome, stories_completed, stories_total
		FROM runs ORDER BY started_at DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.EndedAt, &r.RunDir, &r.Branch, &r.Tool,
			&r.MaxIterations, &r.Iterations, &r.Outcome, &r.StoriesCompleted, &r.StoriesTotal); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// ListIterations returns the iterations of runID in order.
func (s *Store) ListIterations(ctx context.Context, runID string) ([]IterationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT iteration, started_at, ended_at, exit_code, completed, cancelled
		FROM iterations WHERE run_id=? ORDER BY iteration`, runID)
	if err != nil {
		return nil, fmt.Errorf("list iterations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []IterationRecord
	for rows.Next() {
		var (
			rec                 IterationRecord
			startedAt, endedAt  string
			completed, canceled int
		)
		if err := rows.Scan(&rec.Iteration, &startedAt, &endedAt, &rec.ExitCode, &completed, &canceled); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		rec.RunID = runID
		rec.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		rec.EndedAt, _ = time.Parse(time.RFC3339, endedAt)
		rec.Completed = completed != 0
		rec.Cancelled = canceled != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iterations: %w", err)
	}
	return out, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func newRunID(now time.Time) (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102-150405"), hex.EncodeToString(buf)), nil
}
