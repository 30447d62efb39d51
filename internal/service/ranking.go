package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/model"
)

// LeaderboardStore reads the richest users.
type LeaderboardStore interface {
	GetTopByBalance(ctx context.Context, limit int) ([]*model.User, error)
}

// TransactionStore reads balance history.
type TransactionStore interface {
	GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error)
	GetNetResult(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error)
}

// RankingService handles the leaderboard and per-user history.
type RankingService struct {
	users    LeaderboardStore
	txs      TransactionStore
	timezone *time.Location
	now      func() time.Time
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(users LeaderboardStore, txs TransactionStore, timezone *time.Location) *RankingService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &RankingService{
		users:    users,
		txs:      txs,
		timezone: timezone,
		now:      time.Now,
	}
}

// GetTopUsers retrieves the top users by balance.
func (s *RankingService) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	return s.users.GetTopByBalance(ctx, limit)
}

// GetHistory returns the latest transactions of a user, newest first.
func (s *RankingService) GetHistory(ctx context.Context, telegramID int64, limit int) ([]*model.Transaction, error) {
	return s.txs.GetByUserID(ctx, telegramID, limit)
}

// GetDailyResult returns the user's game profit or loss since local midnight.
func (s *RankingService) GetDailyResult(ctx context.Context, telegramID int64) (decimal.Decimal, error) {
	now := s.now().In(s.timezone)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.timezone)
	return s.txs.GetNetResult(ctx, telegramID, midnight)
}
