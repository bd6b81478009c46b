package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RetentionPolicy controls history cleanup.
type RetentionPolicy struct {
	KeepLast int
	KeepDays int
}

// PruneResult summarizes a prune operation.
type PruneResult struct {
	Considered int
	Kept       int
	Deleted    int
}

// Prune deletes finished runs outside the policy. Unfinished runs are always kept.
func (s *Store) Prune(ctx context.Context, policy RetentionPolicy, dryRun bool) (PruneResult, error) {
	if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
		return PruneResult{}, nil
	}
	cutoff := time.Time{}
	if policy.KeepDays > 0 {
		cutoff = s.now().UTC().Add(-time.Duration(policy.KeepDays) * 24 * time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT run_id, started_at, outcome FROM runs ORDER BY started_at DESC, run_id DESC`)
	if err != nil {
		return PruneResult{}, fmt.Errorf("list runs: %w", err)
	}
	type runRow struct {
		id        string
		startedAt time.Time
		outcome   string
		parseErr  error
	}
	var runs []runRow
	for rows.Next() {
		var id, startedAt, outcome string
		if err := rows.Scan(&id, &startedAt, &outcome); err != nil {
			_ = rows.Close()
			return PruneResult{}, fmt.Errorf("scan run: %w", err)
		}
		parsed, parseErr := time.Parse(time.RFC3339, startedAt)
		runs = append(runs, runRow{id: id, startedAt: parsed, outcome: outcome, parseErr: parseErr})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return PruneResult{}, fmt.Errorf("iterate runs: %w", err)
	}
	_ = rows.Close()

	res := PruneResult{Considered: len(runs)}
	var doomed []string
	for idx, row := range runs {
		keep := row.outcome == OutcomeRunning
		if !keep && policy.KeepLast > 0 && idx < policy.KeepLast {
			keep = true
		}
		if !keep && policy.KeepDays > 0 {
			if row.parseErr != nil || row.startedAt.After(cutoff) {
				keep = true
			}
		}
		if keep {
			res.Kept++
			continue
		}
		doomed = append(doomed, row.id)
	}
	res.Deleted = len(doomed)
	if dryRun || len(doomed) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return PruneResult{}, fmt.Errorf("begin prune: %w", err)
	}
	for _, id := range doomed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id=?`, id); err != nil {
			_ = tx.Rollback()
			return PruneResult{}, fmt.Errorf("delete run %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return PruneResult{}, fmt.Errorf("commit prune: %w", err)
	}
	return res, nil
}
