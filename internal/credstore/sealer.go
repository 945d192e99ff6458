// Package credstore persists login credentials. App keys are long-lived
// password equivalents, so they are sealed with a machine-local secret before
// they reach the database.
package credstore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltSize   = 16
	secretSize = 32
	nonceSize  = 24
)

// ErrSealBroken is returned when a sealed value fails authentication, which
// happens when the secret file was replaced after the value was stored.
var ErrSealBroken = errors.New("credstore: sealed value does not open with the current secret")

// Sealer encrypts and decrypts byte slices with a key derived from a secret
// kept outside the database.
type Sealer struct {
	key [32]byte
}

// LoadSealer reads the secret file at path, creating it with fresh random
// material on first use. The file holds the scrypt salt followed by the raw
// secret and is written with owner-only permissions.
func LoadSealer(path string) (*Sealer, error) {
	material, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		material, err = createSecretFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: loading secret file: %w", err)
	}
	if len(material) != saltSize+secretSize {
		return nil, fmt.Errorf("credstore: secret file %s has %d bytes, want %d", path, len(material), saltSize+secretSize)
	}

	derived, err := scrypt.Key(material[saltSize:], material[:saltSize], 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("credstore: deriving key: %w", err)
	}
	sealer := &Sealer{}
	copy(sealer.key[:], derived)
	return sealer, nil
}

func createSecretFile(path string) ([]byte, error) {
	material := make([]byte, saltSize+secretSize)
	if _, err := rand.Read(material); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, material, 0o600); err != nil {
		return nil, err
	}
	return material, nil
}

// Seal encrypts plain and returns nonce-prefixed ciphertext.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("credstore: generating nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize {
		return nil, ErrSealBroken
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrSealBroken
	}
	return plain, nil
}
