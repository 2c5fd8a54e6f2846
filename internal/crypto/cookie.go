// Package crypto provides the confidentiality and hashing primitives the
// service is keyed on: the AES-256-GCM cookie codec, the grant envelope, and
// the HMAC identifier hasher. Keys are loaded once at startup and read-only
// afterwards.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const KeySize = 32

// ErrInvalidCookie is returned for any malformed, truncated, or tampered
// ciphertext. Decryption fails closed; callers must treat this as an
// authentication failure.
var ErrInvalidCookie = errors.New("invalid cookie")

// Codec seals and opens opaque blobs with AES-256-GCM. It has no knowledge
// of what the blob contains.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a codec from a 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. Any failure, including a failed
// integrity check, is reported as ErrInvalidCookie.
func (c *Codec) Decrypt(token string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCookie
	}
	if len(sealed) < c.aead.NonceSize() {
		return nil, ErrInvalidCookie
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidCookie
	}
	return plaintext, nil
}

// NewKey generates a fresh random 32-byte key. Used by operational tooling,
// never called on the request path.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return key, nil
}
