// Package crypto seals the observed item set for storage on shared runners.
//
// Payloads are encrypted with AES-256-GCM. The key is derived from the configured
// secret with PBKDF2-SHA256 and a random salt that is stored in front of the nonce,
// so two encryptions of the same state never share a key or a ciphertext.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	nonceSize  = 12
	iterations = 100000
	keySize    = 32 // AES-256
)

// magic prefixes every sealed payload
var magic = []byte("EW1")

// ErrDecrypt is returned when a payload cannot be opened: wrong secret, tampered or
// truncated data, or data that was never sealed by an Encryptor.
var ErrDecrypt = errors.New("decrypting state")

// Encryptor seals and opens state payloads with a secret
type Encryptor struct {
	secret []byte
}

// NewEncryptor creates an encryptor for the given secret. An empty secret yields nil.
func NewEncryptor(secret string) *Encryptor {
	if secret == "" {
		return nil
	}
	return &Encryptor{secret: []byte(secret)}
}

func (e *Encryptor) gcm(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.secret, salt, iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext. The result is magic | salt | nonce | ciphertext.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if e == nil {
		return nil, errors.New("encryptor not configured")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	gcm, err := e.gcm(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	out := make([]byte, 0, len(magic)+saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, magic), nil
}

// Decrypt opens a payload produced by Encrypt. Every failure wraps ErrDecrypt.
func (e *Encryptor) Decrypt(data []byte) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: no secret configured", ErrDecrypt)
	}

	if !bytes.HasPrefix(data, magic) {
		return nil, fmt.Errorf("%w: unrecognized format", ErrDecrypt)
	}
	data = data[len(magic):]

	if len(data) < saltSize+nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	salt, rest := data[:saltSize], data[saltSize:]
	gcm, err := e.gcm(salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, magic)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrDecrypt)
	}

	return plaintext, nil
}

// GenerateKey returns a random 32-byte secret, URL-safe base64 encoded, suitable for
// ARTIFACT_ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(key), nil
}
