// Package slot implements the Telegram 🎰 slot machine.
package slot

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/pkg/money"
)

// Reel symbols in the order Telegram's slot animation encodes them.
const (
	SymbolBAR   = 1
	SymbolGrape = 2
	SymbolLemon = 3
	SymbolSeven = 4
)

// SymbolNames maps symbols to their emoji.
var SymbolNames = map[int]string{
	SymbolBAR:   "🍫",
	SymbolGrape: "🍇",
	SymbolLemon: "🍋",
	SymbolSeven: "7️⃣",
}

// Bet bounds and step.
var (
	MinBet  = decimal.RequireFromString("0.25")
	MaxBet  = decimal.NewFromInt(50)
	BetStep = decimal.NewFromInt(1)
)

var ErrInvalidSlotValue = errors.New("slot value must be between 1 and 64")

// Combo is a winning reel pattern.
type Combo struct {
	Label      string
	Multiplier decimal.Decimal
	match      func(l, m, r int) bool
}

// Combos are checked in order; the first match pays.
var Combos = []Combo{
	{"7️⃣7️⃣7️⃣", decimal.NewFromInt(20), func(l, m, r int) bool { return l == SymbolSeven && m == SymbolSeven && r == SymbolSeven }},
	{"Any triple", decimal.NewFromInt(7), func(l, m, r int) bool { return l == m && m == r }},
	{"7️⃣7️⃣❓", decimal.NewFromInt(2), func(l, m, _ int) bool { return l == SymbolSeven && m == SymbolSeven }},
	{"❓7️⃣7️⃣", decimal.NewFromInt(1), func(_, m, r int) bool { return m == SymbolSeven && r == SymbolSeven }},
	{"🍫🍫❓", decimal.RequireFromString("0.5"), func(l, m, _ int) bool { return l == SymbolBAR && m == SymbolBAR }},
	{"🍋🍋❓", decimal.RequireFromString("0.25"), func(l, m, _ int) bool { return l == SymbolLemon && m == SymbolLemon }},
	{"🍇🍇❓", decimal.RequireFromString("0.25"), func(l, m, _ int) bool { return l == SymbolGrape && m == SymbolGrape }},
}

// DecodeSlot decodes a slot value (1-64) into three symbols (1-4 each).
// value = left + (middle-1)*4 + (right-1)*16
func DecodeSlot(slotValue int) (left, middle, right int) {
	value := slotValue - 1
	left = (value % 4) + 1
	middle = ((value / 4) % 4) + 1
	right = (value / 16) + 1
	return left, middle, right
}

// EncodeSlot is the inverse of DecodeSlot.
func EncodeSlot(left, middle, right int) int {
	return left + (middle-1)*4 + (right-1)*16
}

// Outcome is a settled spin.
type Outcome struct {
	Value    int
	Reels    [3]int
	Combo    *Combo
	Winnings decimal.Decimal
}

// Won reports whether any combo paid.
func (o Outcome) Won() bool { return o.Combo != nil }

// Display renders the reels.
func (o Outcome) Display() string {
	return SymbolNames[o.Reels[0]] + SymbolNames[o.Reels[1]] + SymbolNames[o.Reels[2]]
}

// Evaluate settles a spin. The stake is always lost; Winnings is the amount
// credited back, floored to cents.
func Evaluate(slotValue int, bet decimal.Decimal) (Outcome, error) {
	if slotValue < 1 || slotValue > 64 {
		return Outcome{}, fmt.Errorf("%w: %d", ErrInvalidSlotValue, slotValue)
	}
	l, m, r := DecodeSlot(slotValue)
	out := Outcome{Value: slotValue, Reels: [3]int{l, m, r}, Winnings: decimal.Zero}
	for i := range Combos {
		if Combos[i].match(l, m, r) {
			out.Combo = &Combos[i]
			out.Winnings = money.Payout(bet, Combos[i].Multiplier)
			break
		}
	}
	return out, nil
}

// Adjust applies a bet button to the current bet.
func Adjust(bet decimal.Decimal, action string) decimal.Decimal {
	switch action {
	case ActMinus:
		bet = bet.Sub(BetStep)
	case ActPlus:
		bet = bet.Add(BetStep)
	case ActMin:
		bet = MinBet
	case ActDouble:
		bet = bet.Mul(decimal.NewFromInt(2))
	case ActMax:
		bet = MaxBet
	}
	return money.Clamp(bet, MinBet, MaxBet)
}
