// Package game defines what every mini-game shares: stake limits, the
// registry used for /help and cooldowns, per-user sessions and randomness.
package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/pkg/money"
)

// Common game errors.
var (
	ErrInvalidBet    = errors.New("bet amount must be positive")
	ErrBetTooLow     = errors.New("bet is below the minimum")
	ErrBetTooHigh    = errors.New("bet exceeds maximum allowed")
	ErrAlreadyInGame = errors.New("already in a game")
	ErrNoSession     = errors.New("no active game")
	ErrNotYourGame   = errors.New("this is not your game")
)

// Game describes a mini-game to the bot. Game logic itself lives in each
// game package; handlers look games up by command to validate stakes.
type Game interface {
	// Name returns the display name, e.g. "Mines".
	Name() string
	// Command returns the command without the slash, e.g. "mine".
	Command() string
	// Description returns a one-line summary for /help.
	Description() string
	// Limits returns the stake bounds and cooldown.
	Limits() Limits
}

// Limits bounds a stake and throttles repeated plays.
type Limits struct {
	MinBet   decimal.Decimal
	MaxBet   decimal.Decimal
	Cooldown time.Duration
}

// ValidateBet checks a stake against the limits. A zero bound is not enforced.
func (l Limits) ValidateBet(bet decimal.Decimal) error {
	if !bet.IsPositive() {
		return ErrInvalidBet
	}
	if l.MinBet.IsPositive() && bet.LessThan(l.MinBet) {
		return fmt.Errorf("%w: min bet is %s", ErrBetTooLow, money.USD(l.MinBet))
	}
	if l.MaxBet.IsPositive() && bet.GreaterThan(l.MaxBet) {
		return fmt.Errorf("%w: max bet is %s", ErrBetTooHigh, money.USD(l.MaxBet))
	}
	return nil
}

// Info is a static Game.
type Info struct {
	DisplayName string
	Cmd         string
	Summary     string
	Bounds      Limits
}

func (i Info) Name() string        { return i.DisplayName }
func (i Info) Command() string     { return i.Cmd }
func (i Info) Description() string { return i.Summary }
func (i Info) Limits() Limits      { return i.Bounds }

// RNG is the randomness games draw from. *rand.Rand satisfies it.
type RNG interface {
	IntN(n int) int
	Float64() float64
}

// DefaultRNG returns a randomly seeded generator.
func DefaultRNG() RNG {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// WeightedIndex picks an index with probability proportional to its weight.
// It returns -1 when every weight is zero.
func WeightedIndex(rng RNG, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return -1
	}
	r := rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return -1
}
