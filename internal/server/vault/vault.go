// Package vault owns per-identity key material: it creates, stores and loads
// one AES key per email and applies it to stored passwords. No other package
// reads raw keys from the key repository.
package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/cryptox"
	"github.com/dmitrijs2005/trainingpay/internal/logging"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/keys"
)

type Vault struct {
	keys   keys.Repository
	logger logging.Logger
}

// New binds a vault to a key repository. Bind it to a transaction-scoped
// repository when the key write must commit together with other writes.
func New(repo keys.Repository, logger logging.Logger) *Vault {
	return &Vault{keys: repo, logger: logger}
}

// GetKey loads the key for email, or returns common.ErrKeyNotFound.
func (v *Vault) GetKey(ctx context.Context, email string) ([]byte, error) {
	rec, err := v.keys.Find(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrKeyNotFound
		}
		return nil, err
	}

	key, err := cryptox.DecodeKey(rec.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("stored key for %s: %w", email, err)
	}
	return key, nil
}

// GetOrCreateKey returns the existing key for email or generates and
// persists a new one. created reports whether a key was written.
//
// Callers must serialize creation for the same email (see package locks). A
// concurrent creation that slips through is reported as
// common.ErrorAlreadyExists rather than resolved silently.
func (v *Vault) GetOrCreateKey(ctx context.Context, email string) (key []byte, created bool, err error) {
	key, err = v.GetKey(ctx, email)
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, common.ErrKeyNotFound) {
		return nil, false, err
	}

	key = cryptox.GenerateKey()
	rec := &models.KeyRecord{Email: email, SecretKey: cryptox.EncodeKey(key)}
	if err := v.keys.Save(ctx, rec); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			v.logger.Error(ctx, "concurrent key creation detected", "email", email)
			return nil, false, fmt.Errorf("key for %s created concurrently: %w", email, err)
		}
		return nil, false, err
	}

	v.logger.Info(ctx, "key created", "email", email)
	return key, true, nil
}

func (v *Vault) Encrypt(plaintext string, key []byte) (string, error) {
	return cryptox.Encrypt(plaintext, key)
}

func (v *Vault) Decrypt(ciphertext string, key []byte) (string, error) {
	return cryptox.Decrypt(ciphertext, key)
}

// Remove deletes the key for email. Passwords encrypted under it become
// unrecoverable.
func (v *Vault) Remove(ctx context.Context, email string) error {
	return v.keys.Delete(ctx, email)
}
