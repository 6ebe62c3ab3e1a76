package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

// ResourceStore defines the driven port for the durable local resource cache.
type ResourceStore interface {
	// Reconcile brings the stored rows for (accountID, kind) in line with
	// fetched in a single transaction. Rows present in fetched are upserted
	// with last_seen_at = seenAt; present rows missing from fetched become
	// removed with last_seen_at untouched. On error nothing is changed.
	Reconcile(ctx context.Context, accountID string, kind model.ServiceKind, fetched []model.NormalizedResource, seenAt time.Time) (model.ReconcileResult, error)

	// List reads resources without any remote access.
	List(ctx context.Context, filter model.ResourceFilter) ([]model.Resource, error)

	// PruneRemoved hard-deletes removed rows last seen before the cutoff.
	// Reconciliation never calls this; it is a separate retention policy.
	PruneRemoved(ctx context.Context, before time.Time) (int64, error)
}
