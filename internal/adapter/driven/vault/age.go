package vault

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
)

// Age seals to an X25519 recipient and opens with the matching identity.
type Age struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

var _ Cipher = (*Age)(nil)

// NewAge parses an AGE-SECRET-KEY-1... identity string.
func NewAge(identity string) (*Age, error) {
	id, err := age.ParseX25519Identity(identity)
	if err != nil {
		return nil, fmt.Errorf("parse age identity: %w", err)
	}
	return &Age{identity: id, recipient: id.Recipient()}, nil
}

// GenerateAgeIdentity returns a fresh identity string for configuration.
func GenerateAgeIdentity() (string, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating key pair: %w", err)
	}
	return id.String(), nil
}

// Name reports the cipher identifier stored with each blob.
func (c *Age) Name() string { return CipherAge }

// Seal encrypts plaintext to the identity's recipient.
func (c *Age) Seal(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, c.recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypting data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	return buf.Bytes(), nil
}

// Open decrypts a blob produced by Seal.
func (c *Age) Open(blob []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(blob), c.identity)
	if err != nil {
		return nil, fmt.Errorf("creating decrypted reader: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypting data: %w", err)
	}
	return plaintext, nil
}
