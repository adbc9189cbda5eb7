package object

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher encrypts object files at rest. Implementations must produce a
// self-contained envelope that Decrypt can reverse without out-of-band
// state. The store injects a Cipher at construction time and defaults
// to NoopCipher.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(envelope []byte) ([]byte, error)
}

// NoopCipher stores objects unencrypted.
type NoopCipher struct{}

func (NoopCipher) Encrypt(plaintext []byte) ([]byte, error) { return plaintext, nil }
func (NoopCipher) Decrypt(envelope []byte) ([]byte, error)  { return envelope, nil }

// AEADCipher seals object files with ChaCha20-Poly1305. The on-disk
// envelope is nonce || ciphertext, where the ciphertext carries the
// authentication tag.
type AEADCipher struct {
	key []byte
}

// NewAEADCipher builds an AEADCipher from a 32-byte key.
func NewAEADCipher(key []byte) (*AEADCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	out := make([]byte, len(key))
	copy(out, key)
	return &AEADCipher{key: out}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *AEADCipher) Encrypt(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cipher nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens an envelope produced by Encrypt. It fails on envelopes
// that are too short or fail authentication; callers treat failure as
// "already plaintext" for legacy unencrypted objects.
func (c *AEADCipher) Decrypt(envelope []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	if len(envelope) < chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("cipher envelope too short: %d bytes", len(envelope))
	}
	nonce := envelope[:chacha20poly1305.NonceSize]
	plaintext, err := aead.Open(nil, nonce, envelope[chacha20poly1305.NonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("cipher open: %w", err)
	}
	return plaintext, nil
}
