// Package secure encrypts draft payloads at rest. Drafts are small
// local blobs, so a symmetric AEAD with a derived key is the whole
// story: AES-256-GCM, key stretched from the configured secret with
// PBKDF2.
package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen     = 32
	iterations = 10000
)

// salt is fixed: the secret is per-installation, the salt only
// namespaces the derivation.
var salt = []byte("nexusmail.drafts.v1")

// ErrMalformed is returned for ciphertext too short to contain a
// nonce.
var ErrMalformed = errors.New("malformed ciphertext")

// Cipher encrypts and decrypts byte blobs with a key derived once at
// construction.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the encryption key from secret and prepares the
// AEAD.
func NewCipher(secret string) (*Cipher, error) {
	key := pbkdf2.Key([]byte(secret), salt, iterations, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plain with a fresh random nonce, returned as the
// blob prefix.
func (c *Cipher) Encrypt(plain []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plain, nil), nil
}

// Decrypt opens a blob produced by Encrypt. Tampered or truncated
// blobs fail authentication.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < c.aead.NonceSize() {
		return nil, ErrMalformed
	}
	nonce, sealed := blob[:c.aead.NonceSize()], blob[c.aead.NonceSize():]

	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return plain, nil
}
