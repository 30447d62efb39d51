// Package model defines the data models for the casino bot.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a player account.
type User struct {
	TelegramID int64
	Username   string
	Balance    decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Transaction is one balance movement in a user's history.
type Transaction struct {
	ID          int64
	UserID      int64
	Amount      decimal.Decimal
	Type        string
	Description *string
	CreatedAt   time.Time
}

// PendingDeposit is a processor payment awaiting confirmation.
type PendingDeposit struct {
	PaymentID string
	UserID    int64
	Amount    decimal.Decimal
	Currency  string
	Address   string
	CreatedAt time.Time
}

// Withdrawal statuses.
const (
	WithdrawalPending  = "pending"
	WithdrawalFinished = "finished"
	WithdrawalFailed   = "failed"
)

// Withdrawal is a payout requested by a user.
type Withdrawal struct {
	ID        int64
	PayoutID  string
	UserID    int64
	AmountUSD decimal.Decimal
	Amount    decimal.Decimal
	Currency  string
	Address   string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction types.
const (
	TxTypeBet        = "bet"
	TxTypeWin        = "win"
	TxTypeRefund     = "refund"
	TxTypeDeposit    = "deposit"
	TxTypeWithdraw   = "withdraw"
	TxTypeAdminAdd   = "admin_add"
	TxTypeAdminSub   = "admin_sub"
	TxTypeAdminSet   = "admin_set"
	TxTypePayoutFail = "payout_refund"
)

// GameTransactionTypes returns the transaction types produced by games.
func GameTransactionTypes() []string {
	return []string{TxTypeBet, TxTypeWin, TxTypeRefund}
}
