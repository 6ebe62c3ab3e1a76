package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SyncRunStore = (*SyncRunRepo)(nil)

const defaultRunLimit = 20

// SyncRunRepo is the SQLite implementation of the SyncRunStore port interface.
type SyncRunRepo struct {
	db *DB
}

// NewSyncRunRepo creates a new SyncRunRepo backed by the given DB.
func NewSyncRunRepo(db *DB) *SyncRunRepo {
	return &SyncRunRepo{db: db}
}

// Start records a new run in the running state. The partial unique index on
// running rows makes this the cross-process guard: a second running run for
// the same account returns model.ErrAlreadyInProgress.
func (r *SyncRunRepo) Start(ctx context.Context, run model.SyncRun) error {
	const query = `
		INSERT INTO sync_runs (id, account_id, started_at, status, message, details)
		VALUES (?, ?, ?, 'running', '', '[]')
	`

	if _, err := r.db.Writer.ExecContext(ctx, query, run.ID, run.AccountID, formatTime(run.StartedAt)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: sync_runs.account_id") {
			return fmt.Errorf("start sync run for account %s: %w", run.AccountID, model.ErrAlreadyInProgress)
		}
		return fmt.Errorf("start sync run %s: %w", run.ID, err)
	}
	return nil
}

// FailStale finalizes abandoned running runs as failed.
func (r *SyncRunRepo) FailStale(ctx context.Context, startedBefore, endedAt time.Time, message string) (int64, error) {
	const query = `
		UPDATE sync_runs SET status = 'failed', ended_at = ?, message = ?
		WHERE status = 'running' AND started_at < ?
	`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(endedAt), message, formatTime(startedBefore))
	if err != nil {
		return 0, fmt.Errorf("fail stale sync runs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}

// Finalize stores the outcome of a run. A run can be finalized only once.
func (r *SyncRunRepo) Finalize(ctx context.Context, run model.SyncRun) error {
	if run.EndedAt == nil {
		return fmt.Errorf("finalize sync run %s: missing end time", run.ID)
	}

	details, err := json.Marshal(resultsOrEmpty(run.Results))
	if err != nil {
		return fmt.Errorf("encode sync run %s details: %w", run.ID, err)
	}

	const query = `
		UPDATE sync_runs SET ended_at = ?, status = ?, message = ?, details = ?
		WHERE id = ? AND ended_at IS NULL
	`
	result, err := r.db.Writer.ExecContext(ctx, query,
		formatTime(*run.EndedAt), run.Status, run.Message, string(details), run.ID,
	)
	if err != nil {
		return fmt.Errorf("finalize sync run %s: %w", run.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = r.db.Writer.QueryRowContext(ctx, `SELECT 1 FROM sync_runs WHERE id = ?`, run.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("finalize sync run %s: %w", run.ID, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("finalize sync run %s: %w", run.ID, err)
	}
	return fmt.Errorf("finalize sync run %s: %w", run.ID, model.ErrRunFinalized)
}

// ListByAccount returns up to limit runs for the account, newest first.
func (r *SyncRunRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}

	const query = `
		SELECT id, account_id, started_at, ended_at, status, message, details
		FROM sync_runs
		WHERE account_id = ?
		ORDER BY started_at DESC, id
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs for account %s: %w", accountID, err)
	}
	defer rows.Close()

	runs := []model.SyncRun{}
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}

	return runs, nil
}

func scanSyncRun(s scanner) (*model.SyncRun, error) {
	var (
		run       model.SyncRun
		startedAt string
		endedAt   sql.NullString
		details   string
	)

	err := s.Scan(&run.ID, &run.AccountID, &startedAt, &endedAt, &run.Status, &run.Message, &details)
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.EndedAt, err = parseNullTime(endedAt); err != nil {
		return nil, fmt.Errorf("parse ended_at: %w", err)
	}
	if err := json.Unmarshal([]byte(details), &run.Results); err != nil {
		return nil, fmt.Errorf("decode details of run %s: %w", run.ID, err)
	}

	return &run, nil
}

func resultsOrEmpty(results []model.ServiceResult) []model.ServiceResult {
	if results == nil {
		return []model.ServiceResult{}
	}
	return results
}
