package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

// Syncer runs one account sync.
type Syncer interface {
	Sync(ctx context.Context, accountID string) (*model.SyncRun, error)
}

// schedulerParallelism is how many accounts a cycle syncs at once.
const schedulerParallelism = 2

// SyncScheduler polls every active account on a fixed interval and applies
// the removed-resource retention policy after each cycle.
type SyncScheduler struct {
	accounts  driven.AccountStore
	resources driven.ResourceStore
	syncer    Syncer
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewSyncScheduler creates a scheduler. retention <= 0 keeps removed rows
// forever.
func NewSyncScheduler(
	accounts driven.AccountStore,
	resources driven.ResourceStore,
	syncer Syncer,
	interval, retention time.Duration,
	logger *slog.Logger,
) *SyncScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncScheduler{
		accounts:  accounts,
		resources: resources,
		syncer:    syncer,
		interval:  interval,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// Start runs a cycle immediately and then on every tick until ctx is
// canceled. It returns at once if the interval is not positive.
func (s *SyncScheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("sync scheduler disabled")
		return
	}

	s.RunCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle syncs all active accounts once. Accounts already syncing are
// skipped; failures are logged and do not stop the cycle.
func (s *SyncScheduler) RunCycle(ctx context.Context) {
	start := time.Now()

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		s.logger.Error("list accounts failed", "error", err)
		return
	}

	var (
		g                        errgroup.Group
		synced, skipped, errored = make([]bool, len(accounts)), make([]bool, len(accounts)), make([]bool, len(accounts))
	)
	g.SetLimit(schedulerParallelism)
	for i, account := range accounts {
		if !account.IsActive {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			run, err := s.syncer.Sync(ctx, account.ID)
			switch {
			case errors.Is(err, model.ErrAlreadyInProgress):
				s.logger.Debug("account already syncing, skipped", "account_id", account.ID)
				skipped[i] = true
			case errors.Is(err, model.ErrShuttingDown):
				skipped[i] = true
			case err != nil:
				s.logger.Error("scheduled sync failed", "account_id", account.ID, "error", err)
				errored[i] = true
			default:
				synced[i] = run.Status != model.SyncFailed
				errored[i] = run.Status == model.SyncFailed
			}
			return nil
		})
	}
	_ = g.Wait()

	pruned, err := s.Prune(ctx, s.retention)
	if err != nil {
		s.logger.Error("prune removed resources failed", "error", err)
	}

	s.logger.Info("sync cycle complete",
		"accounts", len(accounts),
		"synced", count(synced),
		"skipped", count(skipped),
		"errors", count(errored),
		"pruned", pruned,
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

// Prune deletes removed resources not seen for longer than olderThan. A
// non-positive olderThan is a no-op.
func (s *SyncScheduler) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	return s.resources.PruneRemoved(ctx, s.now().Add(-olderThan))
}

func count(flags []bool) int {
	var n int
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
