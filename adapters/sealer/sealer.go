// Package sealer provides at-rest encryption for sensitive settings.
package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rdmonitor/rdmon/ports"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// prefix marks a sealed value and its format version.
const prefix = "xc1:"

var (
	// ErrNoSecret is returned when a sealer is built without a secret.
	ErrNoSecret = errors.New("sealer: empty secret")
	// ErrNotSealed is returned when Open is given a value Seal did not produce.
	ErrNotSealed = errors.New("sealer: value is not sealed")
	// ErrTampered is returned when authentication of a sealed value fails.
	ErrTampered = errors.New("sealer: authentication failed")
)

// XChaCha seals values with XChaCha20-Poly1305 under a key derived from a
// configured secret.
type XChaCha struct {
	aead cipher.AEAD
}

// NewXChaCha derives a 256-bit key from secret with HKDF-SHA256.
func NewXChaCha(secret string) (*XChaCha, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("rdmon settings"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &XChaCha{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (x *XChaCha) Seal(plaintext string) (string, error) {
	nonce := make([]byte, x.aead.NonceSize(), x.aead.NonceSize()+len(plaintext)+x.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := x.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (x *XChaCha) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, prefix) {
		return "", ErrNotSealed
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotSealed, err)
	}
	if len(data) < x.aead.NonceSize() {
		return "", ErrNotSealed
	}

	nonce, ciphertext := data[:x.aead.NonceSize()], data[x.aead.NonceSize():]
	plaintext, err := x.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrTampered
	}
	return string(plaintext), nil
}

// IsSealed reports whether v carries the sealed-value prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, prefix)
}

var _ ports.Sealer = (*XChaCha)(nil)

// Plain stores values as-is. Used when no secret is configured.
type Plain struct{}

// Seal returns plaintext unchanged.
func (Plain) Seal(plaintext string) (string, error) {
	return plaintext, nil
}

// Open returns sealed unchanged.
func (Plain) Open(sealed string) (string, error) {
	return sealed, nil
}

var _ ports.Sealer = Plain{}

// New returns an XChaCha sealer for a non-empty secret and Plain otherwise.
func New(secret string) (ports.Sealer, error) {
	if secret == "" {
		return Plain{}, nil
	}
	return NewXChaCha(secret)
}
