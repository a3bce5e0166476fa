package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/dbx"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, tx *models.PaymentTransaction) error {
	query := `INSERT INTO payment_transactions
		(transaction_id, email, user_id, course_id, amount, payment_mode, membership, transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		tx.TransactionID, tx.Email, tx.UserID, tx.CourseID,
		tx.Amount, tx.PaymentMode, tx.Membership, tx.TransactionDate)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, email, search string) ([]models.PaymentTransaction, error) {
	query := `SELECT transaction_id, email, user_id, course_id, amount, payment_mode, membership, transaction_date
		FROM payment_transactions
		WHERE email = $1
		AND ($2 = '' OR course_id ILIKE $3 OR payment_mode ILIKE $3 OR transaction_id ILIKE $3)
		ORDER BY transaction_date DESC`

	pattern := "%" + likeEscaper.Replace(search) + "%"
	rows, err := r.db.QueryContext(ctx, query, email, search, pattern)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.PaymentTransaction{}
	for rows.Next() {
		var tx models.PaymentTransaction
		if err := rows.Scan(&tx.TransactionID, &tx.Email, &tx.UserID, &tx.CourseID,
			&tx.Amount, &tx.PaymentMode, &tx.Membership, &tx.TransactionDate); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
