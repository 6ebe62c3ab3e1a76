// Package vault implements the credential vault: the only component that
// handles decrypted account credentials.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

// SecretReader loads the sealed blob for an account.
type SecretReader interface {
	GetSecret(ctx context.Context, id string) (model.EncryptedBlob, error)
}

// Compile-time interface satisfaction check.
var _ driven.CredentialVault = (*Vault)(nil)

// Vault seals credentials with a Cipher. A Vault without a cipher is disabled:
// it refuses to store and cannot open existing blobs.
type Vault struct {
	secrets SecretReader
	cipher  Cipher
	logger  *slog.Logger
}

// New creates a Vault. cipher may be nil.
func New(secrets SecretReader, cipher Cipher, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{secrets: secrets, cipher: cipher, logger: logger}
}

// Enabled reports whether the vault has key material.
func (v *Vault) Enabled() bool { return v.cipher != nil }

// envelope binds a credential to its account so a blob copied onto another
// account row does not open.
type envelope struct {
	AccountID string           `json:"account_id"`
	Cred      model.Credential `json:"credential"`
}

// Store seals plaintext for accountID. The caller persists the returned blob.
func (v *Vault) Store(_ context.Context, accountID string, plaintext model.Credential) (model.EncryptedBlob, error) {
	if v.cipher == nil {
		return nil, model.ErrVaultDisabled
	}

	payload, err := json.Marshal(envelope{AccountID: accountID, Cred: plaintext})
	if err != nil {
		return nil, fmt.Errorf("encode credential for account %s: %w", accountID, err)
	}
	defer clear(payload)

	blob, err := v.cipher.Seal(payload)
	if err != nil {
		return nil, fmt.Errorf("seal credential for account %s: %w", accountID, err)
	}

	return model.EncryptedBlob(blob), nil
}

// Retrieve opens the stored credential for accountID.
func (v *Vault) Retrieve(ctx context.Context, accountID string) (model.Credential, error) {
	blob, err := v.secrets.GetSecret(ctx, accountID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Credential{}, &model.CredentialError{Kind: model.CredentialNotFound, AccountID: accountID, Err: err}
		}
		return model.Credential{}, fmt.Errorf("load secret for account %s: %w", accountID, err)
	}
	if len(blob) == 0 {
		return model.Credential{}, &model.CredentialError{Kind: model.CredentialNotFound, AccountID: accountID}
	}

	return v.Open(accountID, blob)
}

// Open decrypts a blob that was sealed for accountID.
func (v *Vault) Open(accountID string, blob model.EncryptedBlob) (model.Credential, error) {
	if v.cipher == nil {
		return model.Credential{}, &model.CredentialError{
			Kind: model.CredentialCorrupt, AccountID: accountID, Err: model.ErrVaultDisabled,
		}
	}

	payload, err := v.cipher.Open(blob)
	if err != nil {
		v.logger.Warn("credential decrypt failed", "account_id", accountID, "cipher", v.cipher.Name())
		return model.Credential{}, &model.CredentialError{Kind: model.CredentialCorrupt, AccountID: accountID, Err: err}
	}
	defer clear(payload)

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return model.Credential{}, &model.CredentialError{
			Kind: model.CredentialCorrupt, AccountID: accountID, Err: errors.New("malformed credential payload"),
		}
	}
	if env.AccountID != accountID {
		return model.Credential{}, &model.CredentialError{
			Kind: model.CredentialCorrupt, AccountID: accountID, Err: errors.New("credential sealed for a different account"),
		}
	}
	if env.Cred.IsZero() {
		return model.Credential{}, &model.CredentialError{Kind: model.CredentialNotFound, AccountID: accountID}
	}

	return env.Cred, nil
}
