// Package seal provides authenticated encryption for escrowed identity fields
// and vault keys. Each record gets its own subkey derived from the service
// master key and the record's address, so a leaked ciphertext from one record
// tells an attacker nothing about another, and ciphertexts cannot be swapped
// between records without failing authentication.
package seal

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MasterKeySize is the required master key length in bytes.
const MasterKeySize = 32

/// ErrInvalidCiphertext is returned when a sealed value fails to open: wrong
// key, wrong record binding, truncation, or tampering.
var ErrInvalidCiphertext = errors.New("seal: invalid ciphertext")

// Sealer seals and opens values bound to a record address.
type Sealer struct {
	masterKey []byte
}

// New constructs a Sealer from a master key. The key comes from configuration
// and is never stored alongside sealed records.
func New(masterKey []byte) (*Sealer, error) {
	if len(masterKey) != MasterKeySize {
		return nil, fmt.Errorf("seal: master key must be %d bytes, got %d", MasterKeySize, len(masterKey))
	}
	key := make([]byte, MasterKeySize)
	copy(key, masterKey)
	return &Sealer{masterKey: key}, nil
}

// Seal encrypts plaintext bound to the given address and returns a compact
// base64 token suitable for a text column.
func (s *Sealer) Seal(address, plaintext string) (string, error) {
	aead, err := s.aeadFor(address)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("seal: generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(address))
	return base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a token previously produced by Seal for the same address.
func (s *Sealer) Open(address, token string) (string, error) {
	sealed, err := base64.RawStdEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	aead, err := s.aeadFor(address)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(address))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

// aeadFor derives the per-record XChaCha20-Poly1305 AEAD from the master key
// and the record address.
func (s *Sealer) aeadFor(address string) (cipher.AEAD, error) {
	subkey := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, s.masterKey, nil, []byte("keyhaven/escrow/"+address))
	if _, err := io.ReadFull(kdf, subkey); err != nil {
		return nil, fmt.Errorf("seal: derive subkey: %w", err)
	}
	return chacha20poly1305.NewX(subkey)
}
