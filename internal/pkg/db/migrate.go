package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migrations are applied in order; every statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		telegram_id BIGINT PRIMARY KEY,
		username VARCHAR(255) NOT NULL DEFAULT '',
		balance NUMERIC(20, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_username ON users (LOWER(username))`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(telegram_id),
		amount NUMERIC(20, 2) NOT NULL,
		type VARCHAR(50) NOT NULL,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS pending_deposits (
		payment_id VARCHAR(64) PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(telegram_id),
		amount NUMERIC(30, 10) NOT NULL,
		currency VARCHAR(16) NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS withdrawals (
		id BIGSERIAL PRIMARY KEY,
		payout_id VARCHAR(64) NOT NULL DEFAULT '',
		user_id BIGINT NOT NULL REFERENCES users(telegram_id),
		amount_usd NUMERIC(20, 2) NOT NULL,
		amount NUMERIC(30, 10) NOT NULL,
		currency VARCHAR(16) NOT NULL,
		address TEXT NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_withdrawals_payout_id ON withdrawals (payout_id)`,
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	log.Debug().Int("statements", len(migrations)).Msg("Database schema up to date")
	return nil
}
