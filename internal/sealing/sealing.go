// Package sealing encrypts small secrets at rest with a passphrase-derived key.
//
// Key derivation uses scrypt; encryption uses NaCl secretbox with a random nonce
// prepended to the ciphertext. Sealed values are base64 (std encoding) strings.
package sealing

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	// SaltSize is the length of salts returned by NewSalt.
	SaltSize = 16

	keySize   = 32
	nonceSize = 24

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var (
	// ErrDecrypt is returned when a sealed value cannot be opened (wrong passphrase or corruption).
	ErrDecrypt = errors.New("sealing: unable to decrypt value")
	// ErrEmptyPassphrase is returned when a Sealer is requested with an empty passphrase.
	ErrEmptyPassphrase = errors.New("sealing: passphrase is empty")
)

// Sealer seals and opens values with a fixed key.
type Sealer struct {
	key [keySize]byte
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	return salt, nil
}

// New derives a key from passphrase and salt.
func New(passphrase string, salt []byte) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("sealing: salt is empty")
	}
	k, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	s := &Sealer{}
	copy(s.key[:], k)
	return s, nil
}

// Seal encrypts plaintext.
func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	out, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(out), nil
}
