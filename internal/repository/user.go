// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `telegram_id, username, balance::text, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	var balance string
	if err := row.Scan(&user.TelegramID, &user.Username, &balance, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balance, err)
	}
	user.Balance = b
	return &user, nil
}

// UserRepository handles user data persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a user with the given starting balance.
func (r *UserRepository) Create(ctx context.Context, telegramID int64, username string, initial decimal.Decimal) (*model.User, error) {
	const query = `
		INSERT INTO users (telegram_id, username, balance, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, normalizeUsername(username), initial.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by their Telegram ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, telegramID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByUsername looks a user up by username, ignoring case and a leading "@".
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1) LIMIT 1`

	name := normalizeUsername(username)
	if name == "" {
		return nil, ErrUserNotFound
	}
	user, err := scanUser(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user, creating one if it doesn't exist.
// A changed username is refreshed on the way.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username string, initial decimal.Decimal) (*model.User, bool, error) {
	user, err := r.GetByID(ctx, telegramID)
	if err == nil {
		name := normalizeUsername(username)
		if name != "" && name != user.Username {
			if err := r.UpdateUsername(ctx, telegramID, name); err != nil {
				return nil, false, err
			}
			user.Username = name
		}
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, telegramID, username, initial)
	if err != nil {
		// Another update may have created the row first.
		user, err = r.GetByID(ctx, telegramID)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}
	return user, true, nil
}

// UpdateUsername stores the latest known username.
func (r *UserRepository) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	const query = `UPDATE users SET username = $2, updated_at = NOW() WHERE telegram_id = $1`

	tag, err := r.pool.Exec(ctx, query, telegramID, normalizeUsername(username))
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Debit subtracts amount and records a transaction in one database
// transaction. It fails with ErrInsufficientBalance rather than going negative.
func (r *UserRepository) Debit(ctx context.Context, telegramID int64, amount decimal.Decimal, txType, description string) (*model.User, error) {
	var user *model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		user, err = debit(ctx, tx, telegramID, amount)
		if err != nil {
			return err
		}
		return insertTransaction(ctx, tx, telegramID, amount.Neg(), txType, description)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Credit adds amount and records a transaction in one database transaction.
func (r *UserRepository) Credit(ctx context.Context, telegramID int64, amount decimal.Decimal, txType, description string) (*model.User, error) {
	var user *model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		user, err = credit(ctx, tx, telegramID, amount)
		if err != nil {
			return err
		}
		return insertTransaction(ctx, tx, telegramID, amount, txType, description)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DebitPair debits the same stake from two users atomically; either both
// succeed or neither does.
func (r *UserRepository) DebitPair(ctx context.Context, a, b int64, amount decimal.Decimal, txType, description string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, id := range []int64{a, b} {
			if _, err := debit(ctx, tx, id, amount); err != nil {
				return fmt.Errorf("user %d: %w", id, err)
			}
			if err := insertTransaction(ctx, tx, id, amount.Neg(), txType, description); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetBalance sets a user's balance to an exact value. Used by admin commands.
func (r *UserRepository) SetBalance(ctx context.Context, telegramID int64, balance decimal.Decimal, description string) (*model.User, error) {
	const query = `
		WITH old AS (SELECT balance FROM users WHERE telegram_id = $1 FOR UPDATE)
		UPDATE users u
		SET balance = $2::numeric, updated_at = NOW()
		FROM old
		WHERE u.telegram_id = $1
		RETURNING u.telegram_id, u.username, u.balance::text, u.created_at, u.updated_at, ($2::numeric - old.balance)::text
	`

	var user *model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var u model.User
		var bal, delta string
		err := tx.QueryRow(ctx, query, telegramID, balance.String()).Scan(
			&u.TelegramID, &u.Username, &bal, &u.CreatedAt, &u.UpdatedAt, &delta,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to set balance: %w", err)
		}
		u.Balance, _ = decimal.NewFromString(bal)
		user = &u
		d, _ := decimal.NewFromString(delta)
		return insertTransaction(ctx, tx, telegramID, d, model.TxTypeAdminSet, description)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetTopByBalance returns the richest users.
func (r *UserRepository) GetTopByBalance(ctx context.Context, limit int) ([]*model.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE balance > 0
		ORDER BY balance DESC, telegram_id ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// debit runs the conditional UPDATE that keeps balances non-negative.
func debit(ctx context.Context, q querier, telegramID int64, amount decimal.Decimal) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance - $2::numeric, updated_at = NOW()
		WHERE telegram_id = $1 AND balance >= $2::numeric
		RETURNING ` + userColumns

	user, err := scanUser(q.QueryRow(ctx, query, telegramID, amount.String()))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to debit balance: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE telegram_id = $1)`, telegramID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	return nil, ErrInsufficientBalance
}

func credit(ctx context.Context, q querier, telegramID int64, amount decimal.Decimal) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2::numeric, updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(q.QueryRow(ctx, query, telegramID, amount.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}
	return user, nil
}

func normalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}
