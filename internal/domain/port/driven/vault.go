package driven

import (
	"context"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

// CredentialVault is the only component that sees decrypted credential bytes.
type CredentialVault interface {
	// Store seals plaintext for accountID and returns the blob. The caller
	// persists the blob; plaintext is not retained.
	Store(ctx context.Context, accountID string, plaintext model.Credential) (model.EncryptedBlob, error)

	// Retrieve returns the decrypted credential. Errors are
	// *model.CredentialError with kind CredentialNotFound or CredentialCorrupt.
	Retrieve(ctx context.Context, accountID string) (model.Credential, error)
}
