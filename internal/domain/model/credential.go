package model

import (
	"fmt"
	"log/slog"
)

const redacted = "[REDACTED]"

// Credential is the decrypted secret material of an account. It only exists
// for the lifetime of one sync or connection test and must never be persisted
// or logged; String and LogValue always redact the secret.
type Credential struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
}

// IsZero reports whether the credential carries no key material at all.
func (c Credential) IsZero() bool {
	return c.AccessKeyID == "" && c.SecretAccessKey == "" && c.SessionToken == ""
}

// String implements fmt.Stringer without exposing the secret.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{AccessKeyID: %s, SecretAccessKey: %s}", maskKeyID(c.AccessKeyID), redacted)
}

// GoString keeps %#v from dumping the struct fields.
func (c Credential) GoString() string {
	return c.String()
}

// LogValue implements slog.LogValuer.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("access_key_id", maskKeyID(c.AccessKeyID)),
		slog.String("secret_access_key", redacted),
	)
}

// maskKeyID keeps the four-character prefix (AKIA/ASIA) and the last four
// characters, which is how AWS consoles display key ids.
func maskKeyID(id string) string {
	if len(id) <= 8 {
		return redacted
	}
	return id[:4] + "…" + id[len(id)-4:]
}

// EncryptedBlob is sealed credential material as stored in the accounts table.
type EncryptedBlob []byte

// Identity is the caller identity reported by a successful connection probe.
type Identity struct {
	Account string `json:"account"`
	ARN     string `json:"arn"`
	UserID  string `json:"user_id"`
}
