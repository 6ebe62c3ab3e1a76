package driven

import (
	"context"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

// ResourceSource fetches the complete inventory of one service kind.
// Implementations accumulate all pages before returning and classify their
// failures as *model.AdapterError.
type ResourceSource interface {
	Kind() model.ServiceKind
	FetchAll(ctx context.Context) ([]model.NormalizedResource, error)
}

// SourceFactory builds the resource sources for one sync. Remote factories
// capture cred in a request-scoped client context; the mock factory ignores it.
type SourceFactory interface {
	Sources(ctx context.Context, account model.Account, cred model.Credential) ([]ResourceSource, error)
}

// IdentityProber performs the cheapest authorized remote call for a credential.
type IdentityProber interface {
	Probe(ctx context.Context, region string, cred model.Credential) (*model.Identity, error)
}
