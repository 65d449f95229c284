// File: internal/infra/security/vault.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"gallery-dl-web/internal/domain"
)

// Vault provides symmetric encryption for uploaded credential bundles.
// Implementation uses AES-GCM (AEAD) with a randomly generated nonce per
// message, so tampered ciphertext fails authentication instead of decrypting
// to garbage.
type Vault struct {
	gcm cipher.AEAD
}

// NewVault constructs an AES-GCM vault.
// Key must be 16, 24, or 32 bytes (AES-128/192/256).
func NewVault(key string) (*Vault, error) {
	k := []byte(key)
	n := len(k)
	if n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Vault{gcm: gcm}, nil
}

// Encrypt returns base64-encoded ciphertext. Format: base64(nonce || ciphertext)
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := v.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt accepts output of Encrypt and returns the original plaintext.
// Corrupt or forged input yields domain.ErrCrypto.
func (v *Vault) Decrypt(b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode: %v", domain.ErrCrypto, err)
	}
	ns := v.gcm.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("%w: ciphertext too short", domain.ErrCrypto)
	}
	nonce, ct := data[:ns], data[ns:]
	pt, err := v.gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: gcm open: %v", domain.ErrCrypto, err)
	}
	return string(pt), nil
}
