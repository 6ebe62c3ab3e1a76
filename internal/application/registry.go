package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

const (
	maxNameLen      = 128
	minAccessKeyLen = 16
	maxAccessKeyLen = 128
	minSecretLen    = 32
	maxSecretLen    = 128
)

var regionPattern = regexp.MustCompile(`^[a-z]{2}(-gov|-iso[a-z]*)?-[a-z]+-\d+$`)

// SyncGuard keeps account deletion and syncs of the same account apart.
type SyncGuard interface {
	// WithAccountLock runs fn while no sync of accountID can start, or returns
	// model.ErrAlreadyInProgress if one is running.
	WithAccountLock(accountID string, fn func() error) error
}

// AccountRegistry manages account metadata and hands secrets to the vault.
// It validates structure only; whether a credential works is the connection
// tester's concern.
type AccountRegistry struct {
	accounts driven.AccountStore
	vault    driven.CredentialVault
	syncs    SyncGuard
	newID    func() string
	logger   *slog.Logger
}

// NewAccountRegistry creates a registry. A nil syncs lets deletes proceed
// without checking for running syncs.
func NewAccountRegistry(accounts driven.AccountStore, vault driven.CredentialVault, syncs SyncGuard, logger *slog.Logger) *AccountRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountRegistry{
		accounts: accounts,
		vault:    vault,
		syncs:    syncs,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// Create validates the input, seals its credential and stores the account. Input
// without any credential creates an account that syncs from mock data.
func (r *AccountRegistry) Create(ctx context.Context, in model.AccountInput) (*model.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Region = strings.TrimSpace(in.Region)
	in.ID = strings.TrimSpace(in.ID)

	if err := validateName(in.Name); err != nil {
		return nil, err
	}
	if err := validateRegion(in.Region); err != nil {
		return nil, err
	}
	cred := in.Credential()
	if err := validateCredential(cred); err != nil {
		return nil, err
	}

	id := in.ID
	if id == "" {
		id = r.newID()
	}

	var blob model.EncryptedBlob
	if !cred.IsZero() {
		var err error
		blob, err = r.vault.Store(ctx, id, cred)
		if err != nil {
			return nil, fmt.Errorf("store credential: %w", err)
		}
	}

	account := model.Account{ID: id, Name: in.Name, Region: in.Region, IsActive: true}
	if err := r.accounts.Create(ctx, account, blob); err != nil {
		return nil, err
	}

	r.logger.Info("account created", "account_id", id, "region", in.Region, "has_credentials", blob != nil)

	return r.accounts.Get(ctx, id)
}

// List returns every account, without secret material.
func (r *AccountRegistry) List(ctx context.Context) ([]model.Account, error) {
	return r.accounts.List(ctx)
}

// Get returns one account or model.ErrNotFound.
func (r *AccountRegistry) Get(ctx context.Context, id string) (*model.Account, error) {
	return r.accounts.Get(ctx, id)
}

// Update edits name, region or the active flag.
func (r *AccountRegistry) Update(ctx context.Context, id string, update model.AccountUpdate) (*model.Account, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		update.Name = &name
	}
	if update.Region != nil {
		region := strings.TrimSpace(*update.Region)
		if err := validateRegion(region); err != nil {
			return nil, err
		}
		update.Region = &region
	}

	account, err := r.accounts.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}

	r.logger.Info("account updated", "account_id", id)
	return account, nil
}

// Delete removes the account and everything cached for it.
func (r *AccountRegistry) Delete(ctx context.Context, id string) error {
	del := func() error { return r.accounts.Delete(ctx, id) }
	var err error
	if r.syncs != nil {
		err = r.syncs.WithAccountLock(id, del)
	} else {
		err = del()
	}
	if err != nil {
		return err
	}
	r.logger.Info("account deleted", "account_id", id)
	return nil
}

// SetCredential replaces an account's credential. An empty credential clears
// it, switching the account to mock data.
func (r *AccountRegistry) SetCredential(ctx context.Context, id string, cred model.Credential) error {
	if err := validateCredential(cred); err != nil {
		return err
	}
	if _, err := r.accounts.Get(ctx, id); err != nil {
		return err
	}

	var blob model.EncryptedBlob
	if !cred.IsZero() {
		var err error
		blob, err = r.vault.Store(ctx, id, cred)
		if err != nil {
			return fmt.Errorf("store credential: %w", err)
		}
	}

	if err := r.accounts.SetSecret(ctx, id, blob); err != nil {
		return err
	}

	r.logger.Info("account credential replaced", "account_id", id, "cleared", blob == nil)
	return nil
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrValidation, fmt.Sprintf(format, args...))
}

func validateName(name string) error {
	if name == "" {
		return validationErr("name is required")
	}
	if len(name) > maxNameLen {
		return validationErr("name must be at most %d characters", maxNameLen)
	}
	return nil
}

func validateRegion(region string) error {
	if !regionPattern.MatchString(region) {
		return validationErr("unknown region syntax %q", region)
	}
	return nil
}

// validateCredential accepts either no credential at all or a structurally
// plausible AWS key pair. It never echoes the secret.
func validateCredential(cred model.Credential) error {
	if cred.AccessKeyID == "" && cred.SecretAccessKey == "" {
		if cred.SessionToken != "" {
			return validationErr("session token given without a key pair")
		}
		return nil
	}

	var errs []error
	switch {
	case cred.AccessKeyID == "":
		errs = append(errs, validationErr("access key id is required"))
	case len(cred.AccessKeyID) < minAccessKeyLen || len(cred.AccessKeyID) > maxAccessKeyLen:
		errs = append(errs, validationErr("access key id must be %d-%d characters", minAccessKeyLen, maxAccessKeyLen))
	case !strings.HasPrefix(cred.AccessKeyID, "AKIA") && !strings.HasPrefix(cred.AccessKeyID, "ASIA"):
		errs = append(errs, validationErr("access key id must start with AKIA or ASIA"))
	}

	switch {
	case cred.SecretAccessKey == "":
		errs = append(errs, validationErr("secret access key is required"))
	case len(cred.SecretAccessKey) < minSecretLen || len(cred.SecretAccessKey) > maxSecretLen:
		errs = append(errs, validationErr("secret access key must be %d-%d characters", minSecretLen, maxSecretLen))
	}

	return errors.Join(errs...)
}
