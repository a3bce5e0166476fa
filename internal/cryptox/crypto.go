// Package cryptox holds the symmetric primitives used for reversible password
// storage and for deriving process-wide signing keys.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of a per-identity key (AES-128).
const KeySize = 16

// GenerateKey returns a fresh random AES-128 key.
func GenerateKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// EncodeKey returns the storage form of a raw key.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKey reverses EncodeKey. The decoded key must be a valid AES length.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("decode key: invalid key length %d", len(key))
	}
}

// Encrypt seals plaintext with AES-GCM under key.
//
// The result is base64(nonce || ciphertext || tag). A new random nonce is
// drawn for every call, so encrypting the same plaintext twice yields
// different outputs that both decrypt to the original value.
func Encrypt(plaintext string, key []byte) (string, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())
	sealed := aesgcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Any corruption, truncation or
// key mismatch is reported as common.ErrDecryptionFailed.
func Decrypt(ciphertext string, key []byte) (string, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}

	ns := aesgcm.NonceSize()
	if len(raw) < ns+aesgcm.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", common.ErrDecryptionFailed)
	}

	plaintext, err := aesgcm.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}

// DeriveKey expands secret into size bytes of key material bound to info
// (HKDF-SHA256, no salt).
func DeriveKey(secret []byte, info string, size int) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("derive key: empty secret")
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
