package mines

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/goblinua/medinispx/internal/pkg/callback"
)

func seeded(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, 7)) }

func TestMultiplierTable(t *testing.T) {
	for m := MinMines; m <= MaxMines; m++ {
		row := multipliers[m]
		require.Len(t, row, GridSize*GridSize-m, "row %d", m)
		for i := 1; i < len(row); i++ {
			assert.True(t, row[i].GreaterThan(row[i-1]), "row %d not increasing at %d", m, i)
		}
	}
	assert.Equal(t, "1.03", Multiplier(1, 1).String())
	assert.Equal(t, "24.63", Multiplier(24, 1).String())
	assert.Equal(t, "24.63", Multiplier(24, 5).String())
	assert.True(t, Multiplier(3, 0).IsZero())
}

func TestPlace(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := rapid.IntRange(MinMines, MaxMines).Draw(t, "m")
		got := Place(seeded(rapid.Uint64().Draw(t, "seed")), m)
		if want := min(m+ExtraMines, GridSize*GridSize); len(got) != want {
			t.Fatalf("placed %d mines, want %d", len(got), want)
		}
		seen := map[Pos]bool{}
		for _, p := range got {
			if !p.valid() || seen[p] {
				t.Fatalf("bad or duplicate position %v", p)
			}
			seen[p] = true
		}
	})
}

func TestSetupSelectorsClamp(t *testing.T) {
	b := New(decimal.NewFromInt(1))
	require.NoError(t, b.Left())
	assert.Equal(t, MinMines, b.Mines)
	for i := 0; i < 30; i++ {
		require.NoError(t, b.Right())
	}
	assert.Equal(t, MaxMines, b.Mines)

	require.NoError(t, b.Start(seeded(1)))
	assert.ErrorIs(t, b.Left(), ErrWrongState)
}

// Hitting a mine pays nothing whatever was revealed before; cashing out
// pays the stake times the last multiplier.
func TestRoundProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rng := seeded(rapid.Uint64().Draw(t, "seed"))
		b := New(decimal.NewFromInt(int64(rapid.IntRange(1, 100).Draw(t, "bet"))))
		b.Mines = rapid.IntRange(MinMines, 20).Draw(t, "m")
		if err := b.Start(rng); err != nil {
			t.Fatal(err)
		}
		order := rapid.Permutation(allPositions()).Draw(t, "order")
		stopAfter := rapid.IntRange(1, 25).Draw(t, "stop")

		for i, p := range order {
			hit, err := b.Reveal(rng, p)
			if err != nil {
				t.Fatal(err)
			}
			if hit {
				if b.State != Ended {
					t.Fatalf("state after mine: %v", b.State)
				}
				if _, err := b.CashOut(rng); err == nil {
					t.Fatalf("cash out allowed after hitting a mine")
				}
				if len(b.Shown) != b.Mines || b.Shown[0] != p {
					t.Fatalf("shown %v after hitting %v with %d mines", b.Shown, p, b.Mines)
				}
				return
			}
			if i+1 == stopAfter {
				want := b.Bet.Mul(Multiplier(b.Mines, b.Safe)).Truncate(2)
				got, err := b.CashOut(rng)
				if err != nil {
					t.Fatal(err)
				}
				if !got.Equal(want) {
					t.Fatalf("cash out %s, want %s", got, want)
				}
				return
			}
		}
	})
}

func TestCashOutNeedsReveal(t *testing.T) {
	b := New(decimal.NewFromInt(1))
	_, err := b.CashOut(seeded(1))
	assert.ErrorIs(t, err, ErrWrongState)
	require.NoError(t, b.Start(seeded(1)))
	_, err = b.CashOut(seeded(1))
	assert.ErrorIs(t, err, ErrNothingToCash)
	_, err = b.Reveal(seeded(1), Pos{5, 0})
	assert.ErrorIs(t, err, ErrOutOfGrid)
}

func TestBuildKeyboard(t *testing.T) {
	b := New(decimal.NewFromInt(2))
	kb := BuildKeyboard(b, 123456789)
	assert.Len(t, kb.InlineKeyboard, 3)

	require.NoError(t, b.Start(seeded(3)))
	kb = BuildKeyboard(b, 123456789)
	require.Len(t, kb.InlineKeyboard, GridSize+2)
	d, ok := callback.Decode(kb.InlineKeyboard[4][3].Data)
	require.True(t, ok)
	assert.Equal(t, ActChoose, d.Action)
	assert.Equal(t, []string{"4", "3", "123456789"}, d.Args)
}

func allPositions() []Pos {
	out := make([]Pos, 0, GridSize*GridSize)
	for r := 0; r < GridSize; r++ {
		for c := 0; c < GridSize; c++ {
			out = append(out, Pos{r, c})
		}
	}
	return out
}
