package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/model"
)

// ErrDepositNotFound is returned when no pending deposit matches a payment id,
// including when it was already completed.
var ErrDepositNotFound = errors.New("pending deposit not found")

// DepositRepository stores deposits awaiting processor confirmation.
type DepositRepository struct {
	pool *pgxpool.Pool
}

// NewDepositRepository creates a new DepositRepository instance.
func NewDepositRepository(pool *pgxpool.Pool) *DepositRepository {
	return &DepositRepository{pool: pool}
}

// Create stores a pending deposit.
func (r *DepositRepository) Create(ctx context.Context, d *model.PendingDeposit) error {
	const query = `
		INSERT INTO pending_deposits (payment_id, user_id, amount, currency, address, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, NOW())
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query, d.PaymentID, d.UserID, d.Amount.String(), d.Currency, d.Address).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create pending deposit: %w", err)
	}
	return nil
}

// Get returns a pending deposit by payment id.
func (r *DepositRepository) Get(ctx context.Context, paymentID string) (*model.PendingDeposit, error) {
	const query = `
		SELECT payment_id, user_id, amount::text, currency, address, created_at
		FROM pending_deposits
		WHERE payment_id = $1
	`

	d, err := scanDeposit(r.pool.QueryRow(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to get pending deposit: %w", err)
	}
	return d, nil
}

// Complete removes the pending row and credits usd to its owner in a single
// transaction. A second call for the same payment returns ErrDepositNotFound
// and credits nothing.
func (r *DepositRepository) Complete(ctx context.Context, paymentID string, usd decimal.Decimal, description string) (*model.PendingDeposit, *model.User, error) {
	const query = `
		DELETE FROM pending_deposits
		WHERE payment_id = $1
		RETURNING payment_id, user_id, amount::text, currency, address, created_at
	`

	var (
		deposit *model.PendingDeposit
		user    *model.User
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		deposit, err = scanDeposit(tx.QueryRow(ctx, query, paymentID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrDepositNotFound
			}
			return fmt.Errorf("failed to remove pending deposit: %w", err)
		}
		user, err = credit(ctx, tx, deposit.UserID, usd)
		if err != nil {
			return err
		}
		return insertTransaction(ctx, tx, deposit.UserID, usd, model.TxTypeDeposit, description)
	})
	if err != nil {
		return nil, nil, err
	}
	return deposit, user, nil
}

// DeleteExpired drops pending deposits created before the cutoff.
func (r *DepositRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pending_deposits WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired deposits: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanDeposit(row pgx.Row) (*model.PendingDeposit, error) {
	var d model.PendingDeposit
	var amount string
	if err := row.Scan(&d.PaymentID, &d.UserID, &amount, &d.Currency, &d.Address, &d.CreatedAt); err != nil {
		return nil, err
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	d.Amount = a
	return &d, nil
}
