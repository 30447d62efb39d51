package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/model"
)

var (
	ErrWithdrawalNotFound   = errors.New("withdrawal not found")
	ErrWithdrawalNotPending = errors.New("withdrawal already settled")
)

const withdrawalColumns = `id, payout_id, user_id, amount_usd::text, amount::text, currency, address, status, created_at, updated_at`

// WithdrawalRepository tracks payouts from request to settlement.
type WithdrawalRepository struct {
	pool *pgxpool.Pool
}

// NewWithdrawalRepository creates a new WithdrawalRepository instance.
func NewWithdrawalRepository(pool *pgxpool.Pool) *WithdrawalRepository {
	return &WithdrawalRepository{pool: pool}
}

// CreateWithDebit debits w.AmountUSD from the user and stores w as pending,
// atomically. w.ID, w.Status and timestamps are filled in.
func (r *WithdrawalRepository) CreateWithDebit(ctx context.Context, w *model.Withdrawal) (*model.User, error) {
	const query = `
		INSERT INTO withdrawals (user_id, amount_usd, amount, currency, address, status, created_at, updated_at)
		VALUES ($1, $2::numeric, $3::numeric, $4, $5, 'pending', NOW(), NOW())
		RETURNING id, status, created_at, updated_at
	`

	var user *model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		user, err = debit(ctx, tx, w.UserID, w.AmountUSD)
		if err != nil {
			return err
		}
		desc := fmt.Sprintf("%s %s to %s", w.Amount.String(), w.Currency, w.Address)
		if err := insertTransaction(ctx, tx, w.UserID, w.AmountUSD.Neg(), model.TxTypeWithdraw, desc); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, query, w.UserID, w.AmountUSD.String(), w.Amount.String(), w.Currency, w.Address).
			Scan(&w.ID, &w.Status, &w.CreatedAt, &w.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetPayoutID links a withdrawal to the processor's payout id.
func (r *WithdrawalRepository) SetPayoutID(ctx context.Context, id int64, payoutID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE withdrawals SET payout_id = $2, updated_at = NOW() WHERE id = $1`, id, payoutID)
	if err != nil {
		return fmt.Errorf("failed to set payout id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWithdrawalNotFound
	}
	return nil
}

// GetByPayoutID finds a withdrawal by the processor's payout id.
func (r *WithdrawalRepository) GetByPayoutID(ctx context.Context, payoutID string) (*model.Withdrawal, error) {
	const query = `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE payout_id = $1 AND payout_id <> ''`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, payoutID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return w, nil
}

// MarkFinished moves a pending withdrawal to finished.
func (r *WithdrawalRepository) MarkFinished(ctx context.Context, id int64) error {
	const query = `
		UPDATE withdrawals SET status = 'finished', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to finish withdrawal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWithdrawalNotPending
	}
	return nil
}

// Refund marks a pending withdrawal failed and returns the stake to the user.
// Only the first call for a withdrawal refunds.
func (r *WithdrawalRepository) Refund(ctx context.Context, id int64, reason string) (*model.Withdrawal, *model.User, error) {
	const query = `
		UPDATE withdrawals SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + withdrawalColumns

	var (
		w    *model.Withdrawal
		user *model.User
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		w, err = scanWithdrawal(tx.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWithdrawalNotPending
			}
			return fmt.Errorf("failed to fail withdrawal: %w", err)
		}
		user, err = credit(ctx, tx, w.UserID, w.AmountUSD)
		if err != nil {
			return err
		}
		return insertTransaction(ctx, tx, w.UserID, w.AmountUSD, model.TxTypePayoutFail, reason)
	})
	if err != nil {
		return nil, nil, err
	}
	return w, user, nil
}

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var w model.Withdrawal
	var usd, amount string
	err := row.Scan(&w.ID, &w.PayoutID, &w.UserID, &usd, &amount, &w.Currency, &w.Address, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if w.AmountUSD, err = decimal.NewFromString(usd); err != nil {
		return nil, err
	}
	if w.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &w, nil
}
