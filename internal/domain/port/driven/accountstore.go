package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

// AccountStore defines the driven port for account persistence. The store
// holds the sealed secret blob but never interprets it.
type AccountStore interface {
	// Create inserts a new account. Returns model.ErrConflict if the id exists.
	Create(ctx context.Context, account model.Account, secret model.EncryptedBlob) error
	// Get returns model.ErrNotFound if the account does not exist.
	Get(ctx context.Context, id string) (*model.Account, error)
	List(ctx context.Context) ([]model.Account, error)
	Update(ctx context.Context, id string, update model.AccountUpdate) (*model.Account, error)
	// Delete removes the account together with its resources and sync runs.
	Delete(ctx context.Context, id string) error

	// GetSecret returns the sealed blob, or nil if the account has none.
	GetSecret(ctx context.Context, id string) (model.EncryptedBlob, error)
	// SetSecret replaces the sealed blob; nil clears it.
	SetSecret(ctx context.Context, id string, secret model.EncryptedBlob) error

	// UpdateLastSync records the completion time of a sync. Only the sync
	// orchestrator calls this.
	UpdateLastSync(ctx context.Context, id string, at time.Time) error
}
