package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

// DefaultSyncConcurrency caps concurrent adapter fetches within one sync.
const DefaultSyncConcurrency = 4

// DefaultStaleRunAge is how long a run may stay running before it is
// considered abandoned by a process that exited mid-sync.
const DefaultStaleRunAge = 30 * time.Minute

const staleRunMessage = "interrupted: the process running this sync exited before it finished"

// SyncOrchestrator runs sync runs: one at a time per account, adapters
// fetched concurrently, results reconciled pair by pair.
type SyncOrchestrator struct {
	accounts    driven.AccountStore
	resources   driven.ResourceStore
	runs        driven.SyncRunStore
	selector    *SourceSelector
	retry       RetryPolicy
	concurrency int
	staleAfter  time.Duration

	accountLocks *LockTable
	pairLocks    *LockTable

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup

	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// NewSyncOrchestrator wires the orchestrator. concurrency <= 0 selects
// DefaultSyncConcurrency.
func NewSyncOrchestrator(
	accounts driven.AccountStore,
	resources driven.ResourceStore,
	runs driven.SyncRunStore,
	selector *SourceSelector,
	retry RetryPolicy,
	concurrency int,
	logger *slog.Logger,
) *SyncOrchestrator {
	if concurrency <= 0 {
		concurrency = DefaultSyncConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncOrchestrator{
		accounts:     accounts,
		resources:    resources,
		runs:         runs,
		selector:     selector,
		retry:        retry,
		concurrency:  concurrency,
		staleAfter:   DefaultStaleRunAge,
		accountLocks: NewLockTable(),
		pairLocks:    NewLockTable(),
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
		logger:       logger,
	}
}

// SetStaleRunAge overrides DefaultStaleRunAge. It must exceed the longest
// possible sync; non-positive values are ignored.
func (o *SyncOrchestrator) SetStaleRunAge(d time.Duration) {
	if d > 0 {
		o.staleAfter = d
	}
}

// InProgress reports whether this process is syncing accountID.
func (o *SyncOrchestrator) InProgress(accountID string) bool {
	return o.accountLocks.Held(accountID)
}

// WithAccountLock runs fn while no sync of accountID can start in this
// process. It returns model.ErrAlreadyInProgress without calling fn if a sync
// is running.
func (o *SyncOrchestrator) WithAccountLock(accountID string, fn func() error) error {
	unlock, ok := o.accountLocks.TryLock(accountID)
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, model.ErrAlreadyInProgress)
	}
	defer unlock()
	return fn()
}

// Drain rejects new syncs with model.ErrShuttingDown and waits until the
// in-flight ones have finalized their runs or ctx is done.
func (o *SyncOrchestrator) Drain(ctx context.Context) error {
	o.mu.Lock()
	o.draining = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain syncs: %w", ctx.Err())
	}
}

func (o *SyncOrchestrator) enter() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.draining {
		return false
	}
	o.inflight.Add(1)
	return true
}

// ExpireStale fails running runs older than the stale run age. It returns
// the number of runs changed.
func (o *SyncOrchestrator) ExpireStale(ctx context.Context) (int64, error) {
	now := o.now()
	n, err := o.runs.FailStale(ctx, now.Add(-o.staleAfter), now, staleRunMessage)
	if err != nil {
		return 0, fmt.Errorf("expire stale sync runs: %w", err)
	}
	if n > 0 {
		o.logger.Warn("stale sync runs marked failed", "count", n, "older_than", o.staleAfter)
	}
	return n, nil
}

// Sync performs one full sync of accountID.
//
// It fails fast with model.ErrAlreadyInProgress if the account is already
// syncing in this or another process, with model.ErrShuttingDown once Drain
// was called, and returns model.ErrNotFound or model.ErrAccountInactive without
// recording a run. Once a run is recorded it is always finalized. If the
// credential cannot be resolved the run is finalized as failed and both the
// run and the credential error are returned. Adapter and reconciliation
// failures never surface as an error; they are reported per service.
//
// The sync is not cancelled when ctx is; adapters bound their own latency.
func (o *SyncOrchestrator) Sync(ctx context.Context, accountID string) (*model.SyncRun, error) {
	if !o.enter() {
		return nil, fmt.Errorf("sync account %s: %w", accountID, model.ErrShuttingDown)
	}
	defer o.inflight.Done()

	unlock, ok := o.accountLocks.TryLock(accountID)
	if !ok {
		return nil, fmt.Errorf("sync account %s: %w", accountID, model.ErrAlreadyInProgress)
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	account, err := o.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("sync account %s: %w", accountID, err)
	}
	if !account.IsActive {
		return nil, fmt.Errorf("sync account %s: %w", accountID, model.ErrAccountInactive)
	}

	run := model.SyncRun{
		ID:        o.newID(),
		AccountID: accountID,
		StartedAt: o.now(),
		Status:    model.SyncRunning,
	}
	if err := o.startRun(ctx, run); err != nil {
		if errors.Is(err, model.ErrAlreadyInProgress) {
			return nil, fmt.Errorf("sync account %s: %w", accountID, model.ErrAlreadyInProgress)
		}
		return nil, fmt.Errorf("record sync run: %w", err)
	}

	log := o.logger.With("account_id", accountID, "run_id", run.ID)
	log.Info("sync started")

	sources, mocked, err := o.selector.Select(ctx, *account)
	if err != nil {
		log.Error("credential resolution failed", "error", err)
		run.Status = model.SyncFailed
		run.Message = err.Error()
		if ferr := o.finalize(ctx, &run); ferr != nil {
			return &run, errors.Join(err, ferr)
		}
		return &run, err
	}

	fetched := o.fetchAll(ctx, log, sources)
	run.Results = o.reconcileAll(ctx, log, accountID, fetched, mocked)
	run.Status = model.OverallStatus(run.Results)
	run.Message = summarize(run.Results, mocked)

	if err := o.finalize(ctx, &run); err != nil {
		return &run, err
	}

	if run.Status != model.SyncFailed {
		if err := o.accounts.UpdateLastSync(ctx, accountID, *run.EndedAt); err != nil {
			log.Error("update last sync failed", "error", err)
		}
	}

	log.Info("sync finished",
		"status", run.Status,
		"synced", run.Synced(),
		"mocked", mocked,
		"duration", run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond),
	)

	return &run, nil
}

// startRun records run. When another process holds the account, an
// abandoned run is expired and the start retried once.
func (o *SyncOrchestrator) startRun(ctx context.Context, run model.SyncRun) error {
	err := o.runs.Start(ctx, run)
	if !errors.Is(err, model.ErrAlreadyInProgress) {
		return err
	}
	if n, serr := o.ExpireStale(ctx); serr != nil || n == 0 {
		return err
	}
	return o.runs.Start(ctx, run)
}

type fetchOutcome struct {
	kind      model.ServiceKind
	resources []model.NormalizedResource
	attempts  int
	err       error
}

// fetchAll runs every source concurrently, bounded by the concurrency cap.
// Each source is its own failure boundary: errors are recorded, never
// propagated to siblings.
func (o *SyncOrchestrator) fetchAll(ctx context.Context, log *slog.Logger, sources []driven.ResourceSource) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(sources))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			out := fetchOutcome{kind: src.Kind()}
			out.attempts, out.err = o.retry.Do(ctx, func(ctx context.Context) error {
				res, err := src.FetchAll(ctx)
				if err != nil {
					if model.IsRetryable(err) {
						log.Warn("fetch throttled", "service", src.Kind(), "error", err)
					}
					return err
				}
				out.resources = res
				return nil
			})
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// reconcileAll applies fetched inventories to the store one service at a
// time. Failed fetches leave their pair untouched.
func (o *SyncOrchestrator) reconcileAll(
	ctx context.Context,
	log *slog.Logger,
	accountID string,
	outcomes []fetchOutcome,
	mocked bool,
) []model.ServiceResult {
	results := make([]model.ServiceResult, 0, len(outcomes))

	for _, out := range outcomes {
		result := model.ServiceResult{Service: out.kind, Attempts: out.attempts}

		if out.err != nil {
			log.Warn("service fetch failed", "service", out.kind, "attempts", out.attempts, "error", out.err)
			result.Status = model.ServiceFailed
			result.Error = out.err.Error()
			result.ErrorKind = string(model.AdapterErrorKindOf(out.err))
			results = append(results, result)
			continue
		}

		rec, err := o.reconcile(ctx, accountID, out.kind, out.resources)
		if err != nil {
			log.Error("reconciliation failed", "service", out.kind, "error", err)
			result.Status = model.ServiceFailed
			result.Error = err.Error()
			result.ErrorKind = "reconciliation"
			results = append(results, result)
			continue
		}

		result.Status = model.ServiceSucceeded
		if mocked {
			result.Status = model.ServiceMocked
		}
		result.Count = rec.Upserted()
		result.Upserted = rec.Upserted()
		result.Removed = rec.Removed
		results = append(results, result)

		log.Debug("service reconciled",
			"service", out.kind,
			"inserted", rec.Inserted,
			"updated", rec.Updated,
			"unchanged", rec.Unchanged,
			"removed", rec.Removed,
		)
	}

	return results
}

func (o *SyncOrchestrator) reconcile(
	ctx context.Context,
	accountID string,
	kind model.ServiceKind,
	fetched []model.NormalizedResource,
) (model.ReconcileResult, error) {
	unlock := o.pairLocks.Lock(pairKey(accountID, kind))
	defer unlock()

	res, err := o.resources.Reconcile(ctx, accountID, kind, fetched, o.now())
	if err != nil {
		return res, &model.ReconciliationError{AccountID: accountID, Service: kind, Err: err}
	}
	return res, nil
}

func (o *SyncOrchestrator) finalize(ctx context.Context, run *model.SyncRun) error {
	ended := o.now()
	run.EndedAt = &ended
	if err := o.runs.Finalize(ctx, *run); err != nil {
		o.logger.Error("finalize sync run failed", "run_id", run.ID, "error", err)
		return fmt.Errorf("finalize sync run: %w", err)
	}
	return nil
}

func summarize(results []model.ServiceResult, mocked bool) string {
	var ok int
	for _, r := range results {
		if !r.Failed() {
			ok++
		}
	}
	msg := fmt.Sprintf("%d of %d services synced", ok, len(results))
	if mocked {
		msg += " (mock data, no credentials stored)"
	}
	return msg
}
