// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/metrics"
	"github.com/goblinua/medinispx/internal/model"
	"github.com/goblinua/medinispx/internal/repository"
)

// Account errors. Repository sentinels are re-exported so callers only
// import this package.
var (
	ErrInvalidAmount       = errors.New("invalid amount: must be positive")
	ErrInsufficientBalance = repository.ErrInsufficientBalance
	ErrUserNotFound        = repository.ErrUserNotFound
)

// UserStore is the persistence the account service needs.
type UserStore interface {
	GetOrCreate(ctx context.Context, telegramID int64, username string, initial decimal.Decimal) (*model.User, bool, error)
	GetByID(ctx context.Context, telegramID int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Debit(ctx context.Context, telegramID int64, amount decimal.Decimal, txType, description string) (*model.User, error)
	Credit(ctx context.Context, telegramID int64, amount decimal.Decimal, txType, description string) (*model.User, error)
	DebitPair(ctx context.Context, a, b int64, amount decimal.Decimal, txType, description string) error
	SetBalance(ctx context.Context, telegramID int64, balance decimal.Decimal, description string) (*model.User, error)
}

// AccountService handles balances. Every debit is a single conditional
// update, so a balance never goes negative. Callers serialise per-user
// game state with lock.UserLock around these calls.
type AccountService struct {
	users   UserStore
	metrics *metrics.Metrics
	initial decimal.Decimal
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(users UserStore, m *metrics.Metrics, initialBalance decimal.Decimal) *AccountService {
	return &AccountService{
		users:   users,
		metrics: m,
		initial: initialBalance,
	}
}

// EnsureUser returns the user, registering them on first contact.
func (s *AccountService) EnsureUser(ctx context.Context, telegramID int64, username string) (*model.User, bool, error) {
	user, created, err := s.users.GetOrCreate(ctx, telegramID, username, s.initial)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}
	return user, created, nil
}

// GetUser retrieves a user by their Telegram ID.
func (s *AccountService) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.users.GetByID(ctx, telegramID)
}

// FindByUsername resolves "@name" to a registered user.
func (s *AccountService) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// GetBalance returns the stored balance. Store failures are returned, never
// reported as a zero balance.
func (s *AccountService) GetBalance(ctx context.Context, telegramID int64) (decimal.Decimal, error) {
	user, err := s.users.GetByID(ctx, telegramID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return user.Balance, nil
}

// PlaceBet takes a stake for game.
func (s *AccountService) PlaceBet(ctx context.Context, telegramID int64, game string, amount decimal.Decimal) (*model.User, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	user, err := s.users.Debit(ctx, telegramID, amount, model.TxTypeBet, game)
	if err != nil {
		return nil, err
	}
	s.metrics.Bet(game, amount)
	return user, nil
}

// PlaceMatchBets takes the same stake from both players, or from neither.
func (s *AccountService) PlaceMatchBets(ctx context.Context, a, b int64, game string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := s.users.DebitPair(ctx, a, b, amount, model.TxTypeBet, game); err != nil {
		return err
	}
	s.metrics.Bet(game, amount)
	s.metrics.Bet(game, amount)
	return nil
}

// Payout credits winnings. A zero amount is a no-op returning the current user.
func (s *AccountService) Payout(ctx context.Context, telegramID int64, game string, amount decimal.Decimal) (*model.User, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if amount.IsZero() {
		return s.users.GetByID(ctx, telegramID)
	}
	user, err := s.users.Credit(ctx, telegramID, amount, model.TxTypeWin, game)
	if err != nil {
		return nil, err
	}
	s.metrics.Payout(game, amount)
	return user, nil
}

// Refund returns a stake taken for a game that did not finish.
func (s *AccountService) Refund(ctx context.Context, telegramID int64, game string, amount decimal.Decimal) (*model.User, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	user, err := s.users.Credit(ctx, telegramID, amount, model.TxTypeRefund, game)
	if err != nil {
		return nil, err
	}
	s.metrics.Settled(game, "refund")
	return user, nil
}

// AdminAdd credits a user on an operator's behalf.
func (s *AccountService) AdminAdd(ctx context.Context, adminID, telegramID int64, amount decimal.Decimal) (*model.User, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return s.users.Credit(ctx, telegramID, amount, model.TxTypeAdminAdd, fmt.Sprintf("by admin %d", adminID))
}

// AdminSub debits a user on an operator's behalf; it cannot overdraw.
func (s *AccountService) AdminSub(ctx context.Context, adminID, telegramID int64, amount decimal.Decimal) (*model.User, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return s.users.Debit(ctx, telegramID, amount, model.TxTypeAdminSub, fmt.Sprintf("by admin %d", adminID))
}

// AdminSet overwrites a balance.
func (s *AccountService) AdminSet(ctx context.Context, adminID, telegramID int64, balance decimal.Decimal) (*model.User, error) {
	if balance.IsNegative() {
		return nil, ErrInvalidAmount
	}
	return s.users.SetBalance(ctx, telegramID, balance, fmt.Sprintf("by admin %d", adminID))
}
