// Package secrets provides field-level encryption for sensitive passage
// content stored in the vector database. Ciphertext layout is
// nonce (12 bytes) followed by the AES-256-GCM sealed payload.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	keySize   = 32
	nonceSize = 12
)

var (
	// ErrNotEncrypted reports input too short to carry a nonce and tag.
	ErrNotEncrypted = errors.New("secrets: input is not an encrypted payload")
	// ErrTampered reports an authentication failure during decryption.
	ErrTampered = errors.New("secrets: ciphertext authentication failed")
)

// Encryptor seals and opens field values with AES-256-GCM.
type Encryptor struct {
	aead cipher.AEAD
}

// New builds an Encryptor from a raw 32-byte key.
func New(key []byte) (*Encryptor, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("secrets: key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: init gcm: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// FromBase64 builds an Encryptor from a standard base64 encoded key,
// the format used for key material passed through the environment.
func FromBase64(encoded string) (*Encryptor, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("secrets: decode key: %w", err)
	}
	return New(key)
}

// Encrypt seals plaintext and returns nonce-prefixed ciphertext.
func (e *Encryptor) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("secrets: generate nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a nonce-prefixed ciphertext produced by Encrypt.
func (e *Encryptor) Decrypt(ciphertext []byte) (string, error) {
	if len(ciphertext) < nonceSize+e.aead.Overhead() {
		return "", ErrNotEncrypted
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrTampered
	}
	return string(plaintext), nil
}

// GenerateKey returns a fresh random key encoded in standard base64,
// suitable for the QUERYHUB_ENCRYPTION_KEY environment variable.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("secrets: generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
