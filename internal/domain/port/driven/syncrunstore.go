package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

// SyncRunStore persists sync run history.
type SyncRunStore interface {
	// Start records a new running sync run. Returns model.ErrAlreadyInProgress
	// if the account already has a running run, from any process.
	Start(ctx context.Context, run model.SyncRun) error
	// Finalize writes the end time, status and results. Returns
	// model.ErrRunFinalized if the run was already finalized.
	Finalize(ctx context.Context, run model.SyncRun) error
	// FailStale marks runs still running that started before startedBefore
	// as failed, ended at endedAt. Returns the number of runs changed.
	FailStale(ctx context.Context, startedBefore, endedAt time.Time, message string) (int64, error)
	// ListByAccount returns the most recent runs first.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]model.SyncRun, error)
}
