package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/parexec/parexec/internal/scheduler"
)

// SaveRun persists a run summary and every task result in a single
// transaction. Saving the same run id twice replaces the prior record.
func (s *SQLiteStore) SaveRun(ctx context.Context, run RunRecord, results map[string]*scheduler.Result) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, total, succeeded, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			total = excluded.total,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			skipped = excluded.skipped
	`, run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Total, run.Succeeded, run.Failed, run.Skipped)
	if err != nil {
		return fmt.Errorf("failed to upsert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_results WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear old task results: %w", err)
	}

	// Deterministic insert order keeps the transaction reproducible.
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		res := results[id]
		errStr := ""
		if res.Err != nil {
			errStr = res.Err.Error()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_results (run_id, task_id, status, output, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, res.TaskID, res.Status.String(), res.Output, errStr, res.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to insert result for task %s: %w", res.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRun returns one run and its task records, ordered by task id.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (RunRecord, []TaskRecord, error) {
	var run RunRecord
	var started, finished time.Time

	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, total, succeeded, failed, skipped
		FROM runs WHERE id = ?
	`, runID).Scan(&run.ID, &started, &finished, &run.Total, &run.Succeeded, &run.Failed, &run.Skipped)
	if err == sql.ErrNoRows {
		return RunRecord{}, nil, fmt.Errorf("run %q not found", runID)
	}
	if err != nil {
		return RunRecord{}, nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.StartedAt = started
	run.FinishedAt = finished

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, task_id, status, output, error, duration_ms
		FROM task_results WHERE run_id = ? ORDER BY task_id
	`, runID)
	if err != nil {
		return RunRecord{}, nil, fmt.Errorf("failed to query task results: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var tr TaskRecord
		if err := rows.Scan(&tr.RunID, &tr.TaskID, &tr.Status, &tr.Output, &tr.Error, &tr.DurationMS); err != nil {
			return RunRecord{}, nil, fmt.Errorf("failed to scan task result: %w", err)
		}
		tasks = append(tasks, tr)
	}
	if err := rows.Err(); err != nil {
		return RunRecord{}, nil, fmt.Errorf("failed to iterate task results: %w", err)
	}

	return run, tasks, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means
// no limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, started_at, finished_at, total, succeeded, failed, skipped
		FROM runs ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Total, &run.Succeeded, &run.Failed, &run.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}
