// Package secrets encrypts partner credential material at rest.
//
// AES-256-GCM with a random nonce per call: encrypting the same plaintext
// twice yields different ciphertexts, both of which decrypt to the original.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var (
	ErrInvalidKey        = errors.New("secrets: key must be 32 bytes of hex")
	ErrInvalidCiphertext = errors.New("secrets: invalid ciphertext")
)

// Box encrypts and decrypts short credential strings with a fixed key.
type Box struct {
	aead cipher.AEAD
}

// NewBox creates a Box from a 64-character hex key
func NewBox(hexKey string) (*Box, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}

	return &Box{aead: aead}, nil
}

// Encrypt returns base64url(nonce || ciphertext). A fresh nonce is drawn per
// call so repeated encryptions of the same plaintext differ.
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets: %w", err)
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt for any ciphertext produced with the same key
func (b *Box) Decrypt(encoded string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	nonceSize := b.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := b.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	return string(plaintext), nil
}
