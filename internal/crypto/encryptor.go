// Package crypto encrypts credentials at rest (endpoint secrets and API keys
// stored with subscriptions) using AES-256-GCM.
//
// Each call to Encrypt uses a fresh random nonce, so equal plaintexts produce
// different ciphertexts. Ciphertexts carry a version prefix so stores can tell
// encrypted values from rows written before a key was configured.
//
//	encryptor, err := crypto.NewConfigEncryptor(os.Getenv("CONFIG_ENCRYPTION_KEY"))
//	if err != nil {
//		return err
//	}
//	sealed, err := encryptor.Encrypt("whsec_...")
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"stripe-webhook-router/internal/common/errors"
)

// Prefix marks values produced by Encrypt
const Prefix = "enc:v1:"

const (
	pbkdf2Iterations = 10000
	keyLength        = 32
)

// ConfigEncryptor is safe for concurrent use
type ConfigEncryptor struct {
	aead cipher.AEAD
}

// NewConfigEncryptor derives an AES-256 key from passphrase with PBKDF2
func NewConfigEncryptor(passphrase string) (*ConfigEncryptor, error) {
	if passphrase == "" {
		return nil, errors.ConfigError("encryption key cannot be empty")
	}

	salt := []byte("stripe-webhook-router")
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	return &ConfigEncryptor{aead: aead}, nil
}

// Encrypt seals plaintext. Empty input stays empty.
func (e *ConfigEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Values without Prefix are
// returned unchanged.
func (e *ConfigEncryptor) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", errors.InternalError("failed to decode ciphertext", err)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.ValidationError("ciphertext too short")
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", errors.InternalError("failed to decrypt", err)
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether value was produced by Encrypt
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Prefix)
}
