package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/goblinua/medinispx/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAccountService_EnsureUser(t *testing.T) {
	store := newMemStore()
	svc := NewAccountService(store, nil, dec("5"))
	ctx := context.Background()

	u, created, err := svc.EnsureUser(ctx, 1, "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, dec("5").Equal(u.Balance))

	u, created, err = svc.EnsureUser(ctx, 1, "alice2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "alice2", u.Username)

	found, err := svc.FindByUsername(ctx, "@ALICE2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.TelegramID)
}

func TestAccountService_GetBalanceSurfacesErrors(t *testing.T) {
	svc := NewAccountService(newMemStore(), nil, decimal.Zero)

	_, err := svc.GetBalance(context.Background(), 404)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAccountService_PlaceBet(t *testing.T) {
	store := newMemStore()
	store.seed(1, "alice", "10")
	svc := NewAccountService(store, nil, decimal.Zero)
	ctx := context.Background()

	tests := []struct {
		name    string
		amount  string
		wantErr error
		balance string
	}{
		{"zero", "0", ErrInvalidAmount, "10"},
		{"negative", "-1", ErrInvalidAmount, "10"},
		{"too much", "10.01", ErrInsufficientBalance, "10"},
		{"ok", "2.5", nil, "7.5"},
		{"all in", "7.5", nil, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PlaceBet(ctx, 1, "dice", dec(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.True(t, dec(tt.balance).Equal(store.balance(1)), "balance %s", store.balance(1))
		})
	}
}

func TestAccountService_PlaceMatchBetsAllOrNothing(t *testing.T) {
	store := newMemStore()
	store.seed(1, "alice", "10")
	store.seed(2, "bob", "1")
	svc := NewAccountService(store, nil, decimal.Zero)
	ctx := context.Background()

	err := svc.PlaceMatchBets(ctx, 1, 2, "dice", dec("5"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, dec("10").Equal(store.balance(1)))
	assert.True(t, dec("1").Equal(store.balance(2)))

	require.NoError(t, svc.PlaceMatchBets(ctx, 1, 2, "dice", dec("1")))
	assert.True(t, dec("9").Equal(store.balance(1)))
	assert.True(t, dec("0").Equal(store.balance(2)))
}

func TestAccountService_PayoutAndRefund(t *testing.T) {
	store := newMemStore()
	store.seed(1, "alice", "1")
	svc := NewAccountService(store, nil, decimal.Zero)
	ctx := context.Background()

	u, err := svc.Payout(ctx, 1, "mines", decimal.Zero)
	require.NoError(t, err)
	assert.True(t, dec("1").Equal(u.Balance))
	assert.Equal(t, 0, store.txCount(model.TxTypeWin))

	u, err = svc.Payout(ctx, 1, "mines", dec("2.92"))
	require.NoError(t, err)
	assert.True(t, dec("3.92").Equal(u.Balance))

	_, err = svc.Payout(ctx, 1, "mines", dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	u, err = svc.Refund(ctx, 1, "dice", dec("1"))
	require.NoError(t, err)
	assert.True(t, dec("4.92").Equal(u.Balance))
	assert.Equal(t, 1, store.txCount(model.TxTypeRefund))
}

func TestAccountService_AdminOps(t *testing.T) {
	store := newMemStore()
	store.seed(1, "alice", "3")
	svc := NewAccountService(store, nil, decimal.Zero)
	ctx := context.Background()

	u, err := svc.AdminAdd(ctx, 99, 1, dec("2"))
	require.NoError(t, err)
	assert.True(t, dec("5").Equal(u.Balance))

	_, err = svc.AdminSub(ctx, 99, 1, dec("6"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	u, err = svc.AdminSub(ctx, 99, 1, dec("1"))
	require.NoError(t, err)
	assert.True(t, dec("4").Equal(u.Balance))

	_, err = svc.AdminSet(ctx, 99, 1, dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	u, err = svc.AdminSet(ctx, 99, 1, dec("100"))
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(u.Balance))
	assert.Equal(t, 1, store.txCount(model.TxTypeAdminSet))
}

// A sequence of bets and payouts never leaves a negative balance, and the
// balance always equals the starting amount plus the signed history.
func TestAccountService_BalanceNeverNegativeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := newMemStore()
		start := rapid.IntRange(0, 10000).Draw(t, "startCents")
		store.seed(1, "p", decimal.New(int64(start), -2).String())
		svc := NewAccountService(store, nil, decimal.Zero)
		ctx := context.Background()

		expected := decimal.New(int64(start), -2)
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			amount := decimal.New(int64(rapid.IntRange(1, 5000).Draw(t, "cents")), -2)
			if rapid.Bool().Draw(t, "bet") {
				_, err := svc.PlaceBet(ctx, 1, "dice", amount)
				if amount.GreaterThan(expected) {
					if err == nil {
						t.Fatalf("bet %s accepted with balance %s", amount, expected)
					}
					continue
				}
				if err != nil {
					t.Fatalf("bet %s rejected with balance %s: %v", amount, expected, err)
				}
				expected = expected.Sub(amount)
			} else {
				if _, err := svc.Payout(ctx, 1, "dice", amount); err != nil {
					t.Fatalf("payout: %v", err)
				}
				expected = expected.Add(amount)
			}
			got := store.balance(1)
			if got.IsNegative() || !got.Equal(expected) {
				t.Fatalf("balance %s, expected %s", got, expected)
			}
		}
	})
}

func TestRankingService(t *testing.T) {
	store := newMemStore()
	store.seed(1, "alice", "10")
	store.seed(2, "bob", "30")
	store.seed(3, "carol", "20")
	accounts := NewAccountService(store, nil, decimal.Zero)
	ranking := NewRankingService(store, store, time.UTC)
	ctx := context.Background()

	top, err := ranking.GetTopUsers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].Username)
	assert.Equal(t, "carol", top[1].Username)

	_, err = accounts.PlaceBet(ctx, 1, "dice", dec("4"))
	require.NoError(t, err)
	_, err = accounts.Payout(ctx, 1, "dice", dec("1.5"))
	require.NoError(t, err)
	_, err = accounts.AdminAdd(ctx, 9, 1, dec("100"))
	require.NoError(t, err)

	history, err := ranking.GetHistory(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, model.TxTypeAdminAdd, history[0].Type)

	net, err := ranking.GetDailyResult(ctx, 1)
	require.NoError(t, err)
	assert.True(t, dec("-2.5").Equal(net), "net %s", net)
}
