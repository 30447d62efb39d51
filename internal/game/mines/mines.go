// Package mines implements the 5×5 minefield with progressive cash-out.
package mines

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

const (
	GridSize   = 5
	MinMines   = 1
	MaxMines   = 24
	ExtraMines = 2
)

// hotSpots are drawn as mines ten times as often as other tiles.
var hotSpots = map[Pos]bool{{0, 0}: true, {0, 4}: true, {4, 0}: true, {4, 4}: true, {2, 2}: true}

const hotWeight = 10

var (
	ErrWrongState    = errors.New("that action is not available now")
	ErrOutOfGrid     = errors.New("tile is outside the grid")
	ErrAlreadyOpen   = errors.New("tile already revealed")
	ErrNothingToCash = errors.New("reveal at least one tile before cashing out")
)

// State is the lifecycle of a board.
type State int

const (
	Setup State = iota
	Playing
	Ended
)

// Pos is a tile coordinate.
type Pos struct{ Row, Col int }

func (p Pos) valid() bool {
	return p.Row >= 0 && p.Row < GridSize && p.Col >= 0 && p.Col < GridSize
}

// Tile is one grid cell.
type Tile struct {
	Mine       bool
	Revealed   bool
	Multiplier decimal.Decimal
}

// Board is one user's game.
type Board struct {
	Bet        decimal.Decimal
	Mines      int
	State      State
	Grid       [GridSize][GridSize]Tile
	Safe       int
	Multiplier decimal.Decimal
	// Shown are the mines displayed once the round is over.
	Shown     []Pos
	MessageID int
	EndedText string

	placed []Pos
	hit    *Pos
}

// New creates a board in setup with one mine selected.
func New(bet decimal.Decimal) *Board {
	return &Board{Bet: bet, Mines: MinMines, State: Setup}
}

// Left decreases the chosen mine count.
func (b *Board) Left() error {
	if b.State != Setup {
		return ErrWrongState
	}
	b.Mines = max(MinMines, b.Mines-1)
	return nil
}

// Right increases the chosen mine count.
func (b *Board) Right() error {
	if b.State != Setup {
		return ErrWrongState
	}
	b.Mines = min(MaxMines, b.Mines+1)
	return nil
}

// CanStart reports whether Start is allowed. The caller takes the stake
// between CanStart and Start.
func (b *Board) CanStart() bool { return b.State == Setup || b.State == Ended }

// Start lays a fresh minefield.
func (b *Board) Start(rng game.RNG) error {
	if !b.CanStart() {
		return ErrWrongState
	}
	b.Grid = [GridSize][GridSize]Tile{}
	b.placed = Place(rng, b.Mines)
	for _, p := range b.placed {
		b.Grid[p.Row][p.Col].Mine = true
	}
	b.State = Playing
	b.Safe = 0
	b.Multiplier = decimal.Zero
	b.Shown = nil
	b.hit = nil
	b.EndedText = ""
	return nil
}

// Place draws min(m+ExtraMines, 25) distinct mine positions, favouring the
// corners and centre.
func Place(rng game.RNG, m int) []Pos {
	total := min(m+ExtraMines, GridSize*GridSize)
	cells := make([]Pos, 0, GridSize*GridSize)
	weights := make([]float64, 0, GridSize*GridSize)
	for r := 0; r < GridSize; r++ {
		for c := 0; c < GridSize; c++ {
			p := Pos{r, c}
			cells = append(cells, p)
			if hotSpots[p] {
				weights = append(weights, hotWeight)
			} else {
				weights = append(weights, 1)
			}
		}
	}
	out := make([]Pos, 0, total)
	for len(out) < total {
		i := game.WeightedIndex(rng, weights)
		if i < 0 {
			break
		}
		out = append(out, cells[i])
		weights[i] = 0
	}
	return out
}

// Reveal opens a tile. hitMine is true when the round ended in a loss.
func (b *Board) Reveal(rng game.RNG, p Pos) (hitMine bool, err error) {
	if b.State != Playing {
		return false, ErrWrongState
	}
	if !p.valid() {
		return false, ErrOutOfGrid
	}
	t := &b.Grid[p.Row][p.Col]
	if t.Revealed {
		return false, ErrAlreadyOpen
	}
	t.Revealed = true
	if t.Mine {
		b.hit = &p
		b.end(rng)
		return true, nil
	}
	b.Safe++
	b.Multiplier = Multiplier(b.Mines, b.Safe)
	t.Multiplier = b.Multiplier
	return false, nil
}

// Winnings is what cashing out now would pay.
func (b *Board) Winnings() decimal.Decimal {
	if b.Safe == 0 {
		return decimal.Zero
	}
	return money.Payout(b.Bet, b.Multiplier)
}

// CashOut ends the round and returns the amount to credit.
func (b *Board) CashOut(rng game.RNG) (decimal.Decimal, error) {
	if b.State != Playing {
		return decimal.Zero, ErrWrongState
	}
	if b.Safe == 0 {
		return decimal.Zero, ErrNothingToCash
	}
	w := b.Winnings()
	b.end(rng)
	return w, nil
}

// Forfeit ends a round abandoned mid-play; nothing is paid.
func (b *Board) Forfeit(rng game.RNG) {
	if b.State == Playing {
		b.end(rng)
	}
}

// end shows the chosen number of mines: the hit mine plus others at random,
// so the extra mines stay hidden.
func (b *Board) end(rng game.RNG) {
	b.State = Ended
	others := make([]Pos, 0, len(b.placed))
	for _, p := range b.placed {
		if b.hit == nil || p != *b.hit {
			others = append(others, p)
		}
	}
	want := b.Mines
	b.Shown = b.Shown[:0]
	if b.hit != nil {
		b.Shown = append(b.Shown, *b.hit)
		want--
	}
	for i := 0; i < want && len(others) > 0; i++ {
		j := rng.IntN(len(others))
		b.Shown = append(b.Shown, others[j])
		others[j] = others[len(others)-1]
		others = others[:len(others)-1]
	}
}

// HitMine reports whether the round ended on a mine.
func (b *Board) HitMine() bool { return b.hit != nil }

func (b *Board) shown(p Pos) bool {
	for _, s := range b.Shown {
		if s == p {
			return true
		}
	}
	return false
}
