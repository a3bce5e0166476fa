// Package users provides identity repositories for the Postgres and MongoDB
// backends.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/server/models"
)

// Repository persists identities keyed by email. Lookups and updates of a
// missing identity return common.ErrorNotFound; Create on an existing email
// returns common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, email string, encryptedPassword string) error
	// UpdateToken writes the token and its expiry in a single statement.
	UpdateToken(ctx context.Context, email string, token string, expiresAt time.Time) error
	UpdateProfile(ctx context.Context, user *models.User) error
	SetStatus(ctx context.Context, email string, status string) error
}
