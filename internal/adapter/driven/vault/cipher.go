package vault

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Cipher seals and opens opaque credential payloads.
type Cipher interface {
	Name() string
	Seal(plaintext []byte) ([]byte, error)
	Open(blob []byte) ([]byte, error)
}

// Cipher names accepted by NewCipher.
const (
	CipherAES = "aes"
	CipherAge = "age"
)

const keyInfo = "cloudpanel credential vault v1"

// ErrNoKey is returned by NewCipher when no key material is configured.
var ErrNoKey = errors.New("no key material configured")

// NewCipher selects a cipher by name. secretKey feeds the AES cipher and
// ageIdentity (an AGE-SECRET-KEY-1... string) the age cipher.
func NewCipher(name, secretKey, ageIdentity string) (Cipher, error) {
	switch name {
	case CipherAES, "":
		if secretKey == "" {
			return nil, ErrNoKey
		}
		key, err := DeriveKey(secretKey)
		if err != nil {
			return nil, err
		}
		return NewAESGCM(key)
	case CipherAge:
		if ageIdentity == "" {
			return nil, ErrNoKey
		}
		return NewAge(ageIdentity)
	default:
		return nil, fmt.Errorf("unknown cipher: %q", name)
	}
}

// DeriveKey stretches an application secret into a 32-byte AES-256 key.
func DeriveKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
