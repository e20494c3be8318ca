// Package symmetric implements the AES-256-GCM core shared by the field and
// document ciphers.
package symmetric

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// Cipher is a stateless AES-256-GCM wrapper. Nonces are always generated
// internally with a fresh random value per call; callers can never supply
// one, so nonce reuse under a key cannot happen by misuse.
type Cipher struct {
	aead cipher.AEAD
}

// New creates a cipher for a 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher block: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce. The aad is
// authenticated but not encrypted; the same aad must be presented on
// decryption. Empty plaintext is valid and produces a tag-only ciphertext.
func (c *Cipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", types.ErrEncryptionFailed)
	}

	ciphertext = c.aead.Seal(nil, nonce, plaintext, aad)
	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext and verifies its authentication tag. Every
// failure path returns the same generic error so wrong-key and
// tampered-ciphertext cases are indistinguishable to the caller; the tag
// comparison inside GCM is constant-time.
func (c *Cipher) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	if len(nonce) != c.aead.NonceSize() {
		return nil, types.ErrDecryptionFailed
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return plaintext, nil
}
