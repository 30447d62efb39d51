package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/model"
)

// TransactionRepository reads and writes the balance history.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create records a transaction outside of a balance update.
func (r *TransactionRepository) Create(ctx context.Context, userID int64, amount decimal.Decimal, txType, description string) error {
	return insertTransaction(ctx, r.pool, userID, amount, txType, description)
}

// GetByUserID returns a user's transactions, newest first.
func (r *TransactionRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	const query = `
		SELECT id, user_id, amount::text, type, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// GetNetResult sums a user's game transactions since the given time.
// Positive means the user is ahead of the house.
func (r *TransactionRepository) GetNetResult(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM transactions
		WHERE user_id = $1 AND type = ANY($2) AND created_at >= $3
	`

	var sum string
	if err := r.pool.QueryRow(ctx, query, userID, model.GameTransactionTypes(), since).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get net result: %w", err)
	}
	d, err := decimal.NewFromString(sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse net result: %w", err)
	}
	return d, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var tx model.Transaction
	var amount string
	if err := row.Scan(&tx.ID, &tx.UserID, &amount, &tx.Type, &tx.Description, &tx.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	tx.Amount = d
	return &tx, nil
}

func insertTransaction(ctx context.Context, q querier, userID int64, amount decimal.Decimal, txType, description string) error {
	const query = `
		INSERT INTO transactions (user_id, amount, type, description, created_at)
		VALUES ($1, $2::numeric, $3, NULLIF($4, ''), NOW())
	`

	if _, err := q.Exec(ctx, query, userID, amount.String(), txType, description); err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}
