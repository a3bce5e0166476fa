package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/dbx"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Find(ctx context.Context, email string) (*models.KeyRecord, error) {
	query := `SELECT email, secret_key FROM key_storage WHERE email = $1`

	var rec models.KeyRecord
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&rec.Email, &rec.SecretKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rec, nil
}

func (r *PostgresRepository) Save(ctx context.Context, rec *models.KeyRecord) error {
	query := `INSERT INTO key_storage (email, secret_key) VALUES ($1, $2)`

	if _, err := r.db.ExecContext(ctx, query, rec.Email, rec.SecretKey); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete is a no-op when no key exists.
func (r *PostgresRepository) Delete(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM key_storage WHERE email = $1`, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
