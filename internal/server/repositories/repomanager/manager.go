// Package repomanager vends the repositories for one storage backend and
// scopes them to a transaction when a unit of work needs atomicity.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/keys"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/users"
)

// TxFunc is a unit of work. The manager it receives is bound to the
// transaction; repositories taken from it see the transaction's writes.
type TxFunc func(ctx context.Context, m RepositoryManager) error

type RepositoryManager interface {
	Users() users.Repository
	Keys() keys.Repository
	Transactions() transactions.Repository
	// WithTx commits when fn returns nil and rolls back otherwise. Calling
	// WithTx on a manager already bound to a transaction reuses it.
	WithTx(ctx context.Context, fn TxFunc) error
	RunMigrations(ctx context.Context) error
	Close(ctx context.Context) error
}
