package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

// ConnectionTester proves an account's credential is valid and authorized
// with the cheapest remote call available. It never writes to the store.
type ConnectionTester struct {
	accounts driven.AccountStore
	vault    driven.CredentialVault
	prober   driven.IdentityProber
	logger   *slog.Logger
}

// NewConnectionTester creates a tester that checks credentials through prober.
func NewConnectionTester(accounts driven.AccountStore, vault driven.CredentialVault, prober driven.IdentityProber, logger *slog.Logger) *ConnectionTester {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionTester{accounts: accounts, vault: vault, prober: prober, logger: logger}
}

// Test returns the caller identity on success. Failures are a
// *model.CredentialError (missing, corrupt or rejected credential) or a
// *model.AdapterError of kind network or unknown.
func (t *ConnectionTester) Test(ctx context.Context, accountID string) (*model.Identity, error) {
	account, err := t.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	cred, err := t.vault.Retrieve(ctx, accountID)
	if err != nil {
		return nil, err
	}

	id, err := t.prober.Probe(ctx, account.Region, cred)
	if err != nil {
		t.logger.Warn("connection test failed", "account_id", accountID, "error", err)
		if model.AdapterErrorKindOf(err) == model.AdapterUnauthorized {
			return nil, &model.CredentialError{Kind: model.CredentialUnauthorized, AccountID: accountID, Err: err}
		}
		return nil, fmt.Errorf("probe account %s: %w", accountID, err)
	}

	t.logger.Info("connection test succeeded", "account_id", accountID, "aws_account", id.Account)
	return id, nil
}
