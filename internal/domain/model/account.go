package model

import "time"

// Account is a registered set of remote credentials plus metadata. The
// encrypted secret is deliberately not part of this struct; it is only read
// through the credential vault.
type Account struct {
	ID             string
	Name           string
	Region         string
	IsActive       bool
	HasCredentials bool
	LastSync       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AccountInput is the user request for creating an account. ID is optional;
// an empty ID is replaced by a generated one.
type AccountInput struct {
	ID              string
	Name            string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Credential returns the credential portion of the input.
func (s AccountInput) Credential() Credential {
	return Credential{AccessKeyID: s.AccessKeyID, SecretAccessKey: s.SecretAccessKey}
}

// AccountUpdate carries the mutable account fields. Nil fields are left unchanged.
type AccountUpdate struct {
	Name     *string
	Region   *string
	IsActive *bool
}
