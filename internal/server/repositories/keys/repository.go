// Package keys stores the per-identity symmetric key used to encrypt that
// identity's password.
package keys

import (
	"context"

	"github.com/dmitrijs2005/trainingpay/internal/server/models"
)

// Repository is the key store. Save never overwrites: a second Save for the
// same email returns common.ErrorAlreadyExists. Find returns
// common.ErrorNotFound when no key exists.
type Repository interface {
	Find(ctx context.Context, email string) (*models.KeyRecord, error)
	Save(ctx context.Context, rec *models.KeyRecord) error
	Delete(ctx context.Context, email string) error
}
