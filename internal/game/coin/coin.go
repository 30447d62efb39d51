// Package coin implements the heads-or-tails flip against the house.
package coin

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

// Side is a face of the coin.
type Side string

const (
	Heads Side = "heads"
	Tails Side = "tails"
)

var ErrInvalidSide = errors.New("pick heads or tails")

// ParseSide validates a side name.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Heads, Tails:
		return Side(s), nil
	}
	return "", ErrInvalidSide
}

// Other returns the opposite face.
func (s Side) Other() Side {
	if s == Heads {
		return Tails
	}
	return Heads
}

// Label is the button text for a side.
func (s Side) Label() string {
	if s == Heads {
		return "Heads (Trump)"
	}
	return "Tails (Dice Logo)"
}

// Setup is a flip being configured or waiting to be thrown.
type Setup struct {
	Stake     decimal.Decimal
	Choice    Side
	Accepted  bool
	MessageID int
}

// Result is a settled flip.
type Result struct {
	Choice   Side
	Landed   Side
	Won      bool
	Winnings decimal.Decimal
}

// Flipper throws the coin with a fixed player win chance.
type Flipper struct {
	rng        game.RNG
	winChance  float64
	multiplier decimal.Decimal
}

// NewFlipper creates a flipper. A nil rng uses game.DefaultRNG.
func NewFlipper(rng game.RNG, winChance float64, multiplier decimal.Decimal) *Flipper {
	if rng == nil {
		rng = game.DefaultRNG()
	}
	return &Flipper{rng: rng, winChance: winChance, multiplier: multiplier}
}

// Flip settles a flip. The stake is taken before the flip; Winnings is the
// full amount credited back on a win.
func (f *Flipper) Flip(choice Side, stake decimal.Decimal) Result {
	r := Result{Choice: choice, Landed: choice.Other(), Winnings: decimal.Zero}
	if f.rng.Float64() < f.winChance {
		r.Landed = choice
		r.Won = true
		r.Winnings = money.Payout(stake, f.multiplier)
	}
	return r
}
