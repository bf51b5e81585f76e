// Package secrets encrypts small values (the hub access token) at rest.
//
// Values are sealed with AES-256-GCM. The key is derived from the
// HOTELCORE_SECRET_KEY passphrase with HKDF-SHA256, and the stored form is
// base64(nonce || ciphertext).
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	keyLen = 32
	// hkdfInfo binds derived keys to this use so the same passphrase can
	// never produce the JWT key or any other key.
	hkdfInfo = "hotelcore hub token v1"
)

var (
	// ErrEmptyKey is returned when no passphrase is configured.
	ErrEmptyKey = errors.New("secrets: empty key")

	// ErrDecrypt covers malformed input and authentication failures alike.
	ErrDecrypt = errors.New("secrets: decryption failed")
)

// Box seals and opens values with one derived key.
// A Box is safe for concurrent use.
type Box struct {
	aead cipher.AEAD
}

// NewBox derives a key from passphrase and prepares the cipher.
func NewBox(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, ErrEmptyKey
	}

	key := make([]byte, keyLen)
	kdf := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}

	return &Box{aead: aead}, nil
}

// Encrypt returns base64(nonce || ciphertext) for plaintext.
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any failure is reported as ErrDecrypt.
func (b *Box) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecrypt, err)
	}

	ns := b.aead.NonceSize()
	if len(raw) < ns+b.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	plain, err := b.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return string(plain), nil
}
