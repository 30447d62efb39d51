// Package roulette implements single-zero roulette with a house-weighted
// wheel.
package roulette

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

// Pockets is the number of pockets on the wheel (0-36).
const Pockets = 37

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// Color returns "green", "red" or "black".
func Color(n int) string {
	switch {
	case n == 0:
		return "green"
	case redNumbers[n]:
		return "red"
	}
	return "black"
}

// ColorEmoji returns the pocket's colour as an emoji.
func ColorEmoji(n int) string {
	switch Color(n) {
	case "green":
		return "🟢"
	case "red":
		return "🔴"
	}
	return "⚫"
}

// Kind is a bet family.
type Kind string

const (
	Number Kind = "number"
	Range  Kind = "range"
	Even   Kind = "even"
	Odd    Kind = "odd"
	Red    Kind = "red"
	Black  Kind = "black"
)

// Ranges are the accepted range bets.
var Ranges = []string{"1-12", "13-24", "25-36", "1-18", "19-36"}

var ErrInvalidBet = errors.New("invalid roulette bet")

// Bet is a selected wager.
type Bet struct {
	Kind Kind
	// Lo and Hi bound Number and Range bets.
	Lo, Hi int
}

// ParseBet builds a bet from its kind and value ("17", "1-12", or empty).
func ParseBet(kind Kind, value string) (Bet, error) {
	switch kind {
	case Even, Odd, Red, Black:
		return Bet{Kind: kind}, nil
	case Number:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n >= Pockets {
			return Bet{}, fmt.Errorf("%w: number %q", ErrInvalidBet, value)
		}
		return Bet{Kind: Number, Lo: n, Hi: n}, nil
	case Range:
		for _, r := range Ranges {
			if r == value {
				lo, hi, _ := strings.Cut(value, "-")
				l, _ := strconv.Atoi(lo)
				h, _ := strconv.Atoi(hi)
				return Bet{Kind: Range, Lo: l, Hi: h}, nil
			}
		}
		return Bet{}, fmt.Errorf("%w: range %q", ErrInvalidBet, value)
	}
	return Bet{}, fmt.Errorf("%w: kind %q", ErrInvalidBet, kind)
}

// Value is the bet's callback argument.
func (b Bet) Value() string {
	switch b.Kind {
	case Number:
		return strconv.Itoa(b.Lo)
	case Range:
		return fmt.Sprintf("%d-%d", b.Lo, b.Hi)
	}
	return ""
}

// Label is the bet as shown to the player.
func (b Bet) Label() string {
	switch b.Kind {
	case Number:
		return fmt.Sprintf("Number %d", b.Lo)
	case Range:
		return b.Value()
	}
	return strings.ToUpper(string(b.Kind[:1])) + string(b.Kind[1:])
}

// Multiplier is the total return per unit staked on a win.
func (b Bet) Multiplier() decimal.Decimal {
	switch b.Kind {
	case Number:
		return decimal.NewFromInt(36)
	case Range:
		if b.Hi-b.Lo == 11 {
			return decimal.NewFromInt(3)
		}
	}
	return decimal.NewFromInt(2)
}

// Covers reports whether pocket n wins the bet. Zero only wins a bet on 0.
func (b Bet) Covers(n int) bool {
	switch b.Kind {
	case Number:
		return n == b.Lo
	case Range:
		return n >= b.Lo && n <= b.Hi
	case Even:
		return n != 0 && n%2 == 0
	case Odd:
		return n%2 == 1
	case Red:
		return Color(n) == "red"
	case Black:
		return Color(n) == "black"
	}
	return false
}

// Wheel spins with the house's weighting.
type Wheel struct {
	rng       game.RNG
	highStake decimal.Decimal
	winChance float64
}

// NewWheel creates a wheel. Stakes above highStake always land outside the
// bet; otherwise the bet's pockets together get winChance of the mass.
func NewWheel(rng game.RNG, highStake decimal.Decimal, winChance float64) *Wheel {
	if rng == nil {
		rng = game.DefaultRNG()
	}
	return &Wheel{rng: rng, highStake: highStake, winChance: winChance}
}

// Spin returns the pocket the ball lands in.
func (w *Wheel) Spin(b Bet, stake decimal.Decimal) int {
	var win, lose int
	for n := 0; n < Pockets; n++ {
		if b.Covers(n) {
			win++
		} else {
			lose++
		}
	}
	weights := make([]float64, Pockets)
	for n := range weights {
		covered := b.Covers(n)
		switch {
		case w.highStake.IsPositive() && stake.GreaterThan(w.highStake):
			if !covered {
				weights[n] = 1
			}
		case covered:
			weights[n] = w.winChance / float64(win)
		default:
			weights[n] = (1 - w.winChance) / float64(lose)
		}
	}
	if n := game.WeightedIndex(w.rng, weights); n >= 0 {
		return n
	}
	return w.rng.IntN(Pockets)
}

// Result is a settled spin.
type Result struct {
	Pocket   int
	Won      bool
	Winnings decimal.Decimal
}

// Settle spins and computes the amount to credit. The stake is taken
// before the spin.
func (w *Wheel) Settle(b Bet, stake decimal.Decimal) Result {
	n := w.Spin(b, stake)
	r := Result{Pocket: n, Winnings: decimal.Zero}
	if b.Covers(n) {
		r.Won = true
		r.Winnings = money.Payout(stake, b.Multiplier())
	}
	return r
}

// MinStake is the smallest roulette stake; the panel moves in whole dollars.
var MinStake = decimal.NewFromInt(1)

// Table is one user's roulette panel.
type Table struct {
	Stake     decimal.Decimal
	Bet       *Bet
	Numbers   bool
	MessageID int
}

// NewTable opens a panel at stake.
func NewTable(stake decimal.Decimal) *Table {
	return &Table{Stake: stake}
}

// Step changes the stake by delta dollars, never below MinStake.
func (t *Table) Step(delta int64) {
	t.Stake = decimal.Max(MinStake, t.Stake.Add(decimal.NewFromInt(delta)))
}
