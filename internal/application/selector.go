package application

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

// SourceSelector decides, once per sync, whether an account is served by the
// remote sources or the mock sources. Presence of a usable credential is the
// only signal; there is no mode flag and no mixing within a run.
type SourceSelector struct {
	vault  driven.CredentialVault
	remote driven.SourceFactory
	mock   driven.SourceFactory
}

// NewSourceSelector creates a selector over the remote and mock factories.
func NewSourceSelector(vault driven.CredentialVault, remote, mock driven.SourceFactory) *SourceSelector {
	return &SourceSelector{vault: vault, remote: remote, mock: mock}
}

// Select returns the sources for account and whether they are mocks. A
// corrupt credential is an error; a missing one selects the mocks.
func (s *SourceSelector) Select(ctx context.Context, account model.Account) ([]driven.ResourceSource, bool, error) {
	cred, err := s.vault.Retrieve(ctx, account.ID)
	switch {
	case err == nil:
		sources, err := s.remote.Sources(ctx, account, cred)
		if err != nil {
			return nil, false, fmt.Errorf("build remote sources: %w", err)
		}
		return sources, false, nil
	case model.IsCredentialKind(err, model.CredentialNotFound):
		sources, err := s.mock.Sources(ctx, account, model.Credential{})
		if err != nil {
			return nil, true, fmt.Errorf("build mock sources: %w", err)
		}
		return sources, true, nil
	default:
		return nil, false, err
	}
}
