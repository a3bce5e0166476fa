package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/trainingpay/internal/dbx"
	"github.com/dmitrijs2005/trainingpay/internal/server/migrations"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/keys"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories. The zero
// value is not usable; construct with NewPostgresRepositoryManager.
type PostgresRepositoryManager struct {
	db   *sql.DB
	q    dbx.DBTX
	inTx bool
}

// OpenPostgres opens a pgx-backed *sql.DB and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

func NewPostgresRepositoryManager(db *sql.DB) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{db: db, q: db}
}

func (m *PostgresRepositoryManager) Users() users.Repository {
	return users.NewPostgresRepository(m.q)
}

func (m *PostgresRepositoryManager) Keys() keys.Repository {
	return keys.NewPostgresRepository(m.q)
}

func (m *PostgresRepositoryManager) Transactions() transactions.Repository {
	return transactions.NewPostgresRepository(m.q)
}

func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn TxFunc) error {
	if m.inTx {
		return fn(ctx, m)
	}
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &PostgresRepositoryManager{db: m.db, q: tx, inTx: true})
	})
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded goose migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, m.db, ".")
}

func (m *PostgresRepositoryManager) Close(_ context.Context) error {
	return m.db.Close()
}
