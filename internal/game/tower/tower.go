// Package tower implements Monkey Tower: climb nine levels by picking a
// column without a monkey, cashing out at any level.
package tower

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

// Levels is the height of the tower.
const Levels = 9

// Mode sets the number of columns and the payout curve.
type Mode string

const (
	Easy   Mode = "Easy"
	Medium Mode = "Medium"
	Hard   Mode = "Hard"
)

// Modes in rotation order.
var Modes = []Mode{Easy, Medium, Hard}

var columns = map[Mode]int{Easy: 4, Medium: 3, Hard: 2}

var multiplierTable = map[Mode][Levels]string{
	Easy:   {"1.31", "1.74", "2.32", "3.10", "4.13", "5.51", "7.34", "9.79", "13.05"},
	Medium: {"1.47", "2.21", "3.31", "4.96", "7.44", "11.16", "16.74", "25.11", "37.67"},
	Hard:   {"1.72", "3.68", "7.84", "14.68", "30.36", "62.72", "125.44", "250.88", "501.76"},
}

// extraMonkeys is how many additional monkeys each level gets per mode.
var extraMonkeys = map[Mode][Levels]int{
	Easy:   {0, 0, 0, 0, 0, 1, 1, 1, 2},
	Medium: {0, 0, 0, 0, 1, 1, 1, 1, 1},
	Hard:   {0, 0, 0, 1, 1, 1, 1, 1, 1},
}

// Columns returns the number of columns for a mode.
func (m Mode) Columns() int { return columns[m] }

// Multiplier returns the cash-out multiplier after clearing level levels.
func (m Mode) Multiplier(level int) decimal.Decimal {
	if level < 1 || level > Levels {
		return decimal.Zero
	}
	return decimal.RequireFromString(multiplierTable[m][level-1])
}

var (
	ErrWrongState    = errors.New("that action is not available now")
	ErrWrongLevel    = errors.New("pick a spot on the current level")
	ErrBadColumn     = errors.New("column out of range")
	ErrNothingToCash = errors.New("clear at least one level before cashing out")
)

// State is the lifecycle of a tower.
type State int

const (
	Setup State = iota
	Playing
	Ended
)

// Outcome is the result of a pick.
type Outcome int

const (
	Climbed Outcome = iota
	Monkey
	Top
)

// Tower is one user's game.
type Tower struct {
	Bet   decimal.Decimal
	Mode  Mode
	State State
	// Level is the zero-based level being picked on.
	Level int
	// Monkeys holds the primary monkey column per level.
	Monkeys [Levels]int
	// Extra holds the additional monkey columns per level.
	Extra [Levels][]int
	// Picked is the column chosen per level, -1 if none.
	Picked    [Levels]int
	MessageID int
	EndedText string
}

// New creates a tower in setup on Medium.
func New(bet decimal.Decimal) *Tower {
	t := &Tower{Bet: bet, Mode: Medium, State: Setup}
	t.clearPicks()
	return t
}

func (t *Tower) clearPicks() {
	for i := range t.Picked {
		t.Picked[i] = -1
	}
}

// Rotate moves to the previous (dir < 0) or next mode.
func (t *Tower) Rotate(dir int) error {
	if t.State == Playing {
		return ErrWrongState
	}
	i := 0
	for j, m := range Modes {
		if m == t.Mode {
			i = j
		}
	}
	step := 1
	if dir < 0 {
		step = -1
	}
	t.Mode = Modes[(i+step+len(Modes))%len(Modes)]
	return nil
}

// CanStart reports whether Start is allowed.
func (t *Tower) CanStart() bool { return t.State != Playing }

// Start places the monkeys and begins at level 0.
func (t *Tower) Start(rng game.RNG) error {
	if !t.CanStart() {
		return ErrWrongState
	}
	cols := t.Mode.Columns()
	t.State = Playing
	t.Level = 0
	t.EndedText = ""
	t.clearPicks()
	for lvl := 0; lvl < Levels; lvl++ {
		t.Monkeys[lvl] = rng.IntN(cols)
		others := make([]int, 0, cols-1)
		for c := 0; c < cols; c++ {
			if c != t.Monkeys[lvl] {
				others = append(others, c)
			}
		}
		n := extraMonkeys[t.Mode][lvl]
		t.Extra[lvl] = nil
		for k := 0; k < n && len(others) > 0; k++ {
			j := rng.IntN(len(others))
			t.Extra[lvl] = append(t.Extra[lvl], others[j])
			others = append(others[:j], others[j+1:]...)
		}
	}
	return nil
}

// IsMonkey reports whether col on level hides a monkey.
func (t *Tower) IsMonkey(level, col int) bool {
	if col == t.Monkeys[level] {
		return true
	}
	for _, c := range t.Extra[level] {
		if c == col {
			return true
		}
	}
	return false
}

// Choose picks col on level. Reaching the top ends the game; the caller
// credits TopWinnings.
func (t *Tower) Choose(level, col int) (Outcome, error) {
	if t.State != Playing {
		return 0, ErrWrongState
	}
	if level != t.Level {
		return 0, ErrWrongLevel
	}
	if col < 0 || col >= t.Mode.Columns() {
		return 0, ErrBadColumn
	}
	t.Picked[level] = col
	if t.IsMonkey(level, col) {
		t.State = Ended
		return Monkey, nil
	}
	t.Level++
	if t.Level == Levels {
		t.State = Ended
		return Top, nil
	}
	return Climbed, nil
}

// Winnings is what cashing out now pays.
func (t *Tower) Winnings() decimal.Decimal {
	return money.Payout(t.Bet, t.Mode.Multiplier(t.Level))
}

// CashOut ends the climb and returns the amount to credit.
func (t *Tower) CashOut() (decimal.Decimal, error) {
	if t.State != Playing {
		return decimal.Zero, ErrWrongState
	}
	if t.Level < 1 {
		return decimal.Zero, ErrNothingToCash
	}
	t.State = Ended
	return t.Winnings(), nil
}
