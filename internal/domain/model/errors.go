package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an account does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an account id is already taken.
	ErrConflict = errors.New("conflict")
	// ErrValidation wraps structural validation failures of user input.
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyInProgress is returned when a sync is requested for an account
	// that already has one running. It is a guard rejection, not a failure.
	ErrAlreadyInProgress = errors.New("sync already in progress")
	// ErrAccountInactive is returned when syncing an account with is_active=false.
	ErrAccountInactive = errors.New("account is inactive")
	// ErrRunFinalized is returned when finalizing a sync run twice.
	ErrRunFinalized = errors.New("sync run already finalized")
	// ErrVaultDisabled is returned when storing a credential without a configured key.
	ErrVaultDisabled = errors.New("credential vault disabled: no secret key configured")
	// ErrShuttingDown is returned for syncs requested after the orchestrator
	// started draining.
	ErrShuttingDown = errors.New("shutting down")
)

// CredentialErrorKind distinguishes missing from unreadable secrets.
type CredentialErrorKind string

const (
	CredentialNotFound     CredentialErrorKind = "not_found"
	CredentialCorrupt      CredentialErrorKind = "corrupt"
	CredentialUnauthorized CredentialErrorKind = "unauthorized"
)

// CredentialError reports a problem with an account's stored secret. The
// wrapped error never carries key material.
type CredentialError struct {
	Kind      CredentialErrorKind
	AccountID string
	Err       error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credential %s for account %s: %v", e.Kind, e.AccountID, e.Err)
	}
	return fmt.Sprintf("credential %s for account %s", e.Kind, e.AccountID)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// IsCredentialKind reports whether err is a CredentialError of the given kind.
func IsCredentialKind(err error, kind CredentialErrorKind) bool {
	var ce *CredentialError
	return errors.As(err, &ce) && ce.Kind == kind
}

// AdapterErrorKind classifies a failure of one resource source.
type AdapterErrorKind string

const (
	AdapterThrottled    AdapterErrorKind = "throttled"
	AdapterUnauthorized AdapterErrorKind = "unauthorized"
	AdapterNotFound     AdapterErrorKind = "not_found"
	AdapterNetwork      AdapterErrorKind = "network"
	AdapterUnknown      AdapterErrorKind = "unknown"
)

// AdapterError is a classified failure scoped to one service kind.
type AdapterError struct {
	Kind    AdapterErrorKind
	Service ServiceKind
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter %s: %v", e.Service, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Retryable reports whether the retry policy may try the call again.
func (e *AdapterError) Retryable() bool {
	return e.Kind == AdapterThrottled
}

// NewAdapterError builds an AdapterError.
func NewAdapterError(service ServiceKind, kind AdapterErrorKind, err error) *AdapterError {
	return &AdapterError{Kind: kind, Service: service, Err: err}
}

// AdapterErrorKindOf returns the adapter error kind of err, or AdapterUnknown
// when err is not an AdapterError.
func AdapterErrorKindOf(err error) AdapterErrorKind {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return AdapterUnknown
}

// IsRetryable classifies err for the retry policy. Only throttling is retryable.
func IsRetryable(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae) && ae.Retryable()
}

// ReconciliationError reports a storage failure while reconciling one
// (account, service) pair. The pair's transaction has been rolled back.
type ReconciliationError struct {
	AccountID string
	Service   ServiceKind
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile %s/%s: %v", e.AccountID, e.Service, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
