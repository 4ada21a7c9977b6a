package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateRun starts a new verification run.
func (s *SQLiteStore) CreateRun(ctx context.Context, total int) (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:        generateID(),
		StartedAt: time.Now().UTC(),
		Status:    RunStatusRunning,
		Total:     total,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, total) VALUES (?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.Status, run.Total,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	run := &Run{}
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, completed_at, status, total, passed, failed FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.StartedAt, &completedAt, &run.Status, &run.Total, &run.Passed, &run.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

// CompleteRun marks a run finished with its final tallies.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, passed, failed int) error {
	if err := s.ready(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, passed = ?, failed = ? WHERE id = ?`,
		status, time.Now().UTC(), passed, failed, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordCaseResult stores the outcome of one case. Recording the same case
// twice for a run replaces the earlier result.
func (s *SQLiteStore) RecordCaseResult(ctx context.Context, r *CaseResult) error {
	if err := s.ready(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO case_results (run_id, case_id, rule, fixture, version, status, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.CaseID, r.Rule, r.Fixture, r.Version, r.Status, r.Error, r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record case result: %w", err)
	}
	return nil
}

// ListCaseResults returns the case results of a run ordered by case id.
func (s *SQLiteStore) ListCaseResults(ctx context.Context, runID string) ([]*CaseResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, case_id, rule, fixture, version, status, error, duration_ms
		 FROM case_results WHERE run_id = ? ORDER BY case_id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list case results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*CaseResult
	for rows.Next() {
		r := &CaseResult{}
		var durationMS int64
		if err := rows.Scan(&r.RunID, &r.CaseID, &r.Rule, &r.Fixture, &r.Version,
			&r.Status, &r.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan case result: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}
