// Package transactions stores the payment ledger: one row per payment the
// gateway accepted.
package transactions

import (
	"context"

	"github.com/dmitrijs2005/trainingpay/internal/server/models"
)

// Repository is the payment ledger. Create is insert-only and returns
// common.ErrorAlreadyExists for a repeated transaction id. List returns the
// identity's rows newest first; a non-empty search keeps rows whose course
// id, payment mode or transaction id contains it, ignoring case.
type Repository interface {
	Create(ctx context.Context, tx *models.PaymentTransaction) error
	List(ctx context.Context, email, search string) ([]models.PaymentTransaction, error)
}
