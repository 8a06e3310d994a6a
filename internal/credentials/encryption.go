// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package credentials

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

var (
	// ErrDecryptionFailed indicates a stored value could not be opened with the current key.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidCiphertext indicates a stored value is not a sealed token.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

const encryptionContext = "streamboard-credential-store"

// Encryptor seals tokens with AES-GCM. A nil *Encryptor passes values through.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor derives an AES-256 key from secret. An empty secret disables
// encryption and returns nil.
func NewEncryptor(secret string) (*Encryptor, error) {
	if secret == "" {
		return nil, nil
	}
	if len(secret) < 32 {
		return nil, errors.New("encryption secret must be at least 32 characters")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(encryptionContext)), key); err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// Enabled reports whether values are sealed.
func (e *Encryptor) Enabled() bool {
	return e != nil && e.aead != nil
}

// Seal encrypts plaintext; the nonce is prepended and the result base64-encoded.
func (e *Encryptor) Seal(plaintext string) (string, error) {
	if !e.Enabled() || plaintext == "" {
		return plaintext, nil
	}
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(e.aead.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

// Open reverses Seal.
func (e *Encryptor) Open(sealed string) (string, error) {
	if !e.Enabled() || sealed == "" {
		return sealed, nil
	}
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrInvalidCiphertext)
	}
	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize+1+e.aead.Overhead() {
		return "", fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}
	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryptionFailed, err.Error())
	}
	return string(plaintext), nil
}
