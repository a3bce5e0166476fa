package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/dbx"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) error {
	query :=
		`INSERT INTO users (email, unique_id, first_name, last_name, phone, address, role, status, password)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.UniqueID, user.FirstName, user.LastName, user.Phone, user.Address,
		user.Role, user.Status, user.Password).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT email, unique_id, first_name, last_name, phone, address, role, status, password,
		        token, token_expiry, created_at
		 FROM users
		 WHERE email = $1`

	var (
		user   models.User
		token  sql.NullString
		expiry sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.Email, &user.UniqueID, &user.FirstName, &user.LastName, &user.Phone, &user.Address,
		&user.Role, &user.Status, &user.Password, &token, &expiry, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Token = token.String
	if expiry.Valid {
		t := expiry.Time
		user.TokenExpiry = &t
	}

	return &user, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, email string, encryptedPassword string) error {
	return r.exec(ctx, `UPDATE users SET password = $2 WHERE email = $1`, email, encryptedPassword)
}

func (r *PostgresRepository) UpdateToken(ctx context.Context, email string, token string, expiresAt time.Time) error {
	return r.exec(ctx, `UPDATE users SET token = $2, token_expiry = $3 WHERE email = $1`, email, token, expiresAt)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	return r.exec(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, phone = $4, address = $5 WHERE email = $1`,
		user.Email, user.FirstName, user.LastName, user.Phone, user.Address)
}

func (r *PostgresRepository) SetStatus(ctx context.Context, email string, status string) error {
	return r.exec(ctx, `UPDATE users SET status = $2 WHERE email = $1`, email, status)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
