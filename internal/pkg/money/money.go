// Package money holds the USD amount helpers shared by games and payments.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places balances are kept at.
const Places = 2

var (
	// ErrInvalidAmount is returned for text that is not a number.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNonPositive is returned for zero or negative amounts.
	ErrNonPositive = errors.New("amount must be positive")
)

// Parse reads a user-typed amount such as "5", "$2.50" or "0,25".
// Fractions below a cent are dropped.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = Floor(d)
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositive
	}
	return d, nil
}

// Floor rounds toward zero to whole cents.
func Floor(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(Places)
}

// Payout returns stake × multiplier, rounded down to cents.
func Payout(stake, multiplier decimal.Decimal) decimal.Decimal {
	return Floor(stake.Mul(multiplier))
}

// Format renders an amount with two decimals, without a currency sign.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// USD renders an amount as "$1.23".
func USD(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + Format(d.Neg())
	}
	return "$" + Format(d)
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}
