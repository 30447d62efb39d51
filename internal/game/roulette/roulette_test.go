package roulette

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/goblinua/medinispx/internal/pkg/callback"
)

func mustBet(t *testing.T, k Kind, v string) Bet {
	t.Helper()
	b, err := ParseBet(k, v)
	require.NoError(t, err)
	return b
}

func TestBetCoverage(t *testing.T) {
	tests := []struct {
		kind  Kind
		value string
		count int
		mult  string
	}{
		{Number, "0", 1, "36"},
		{Number, "17", 1, "36"},
		{Range, "1-12", 12, "3"},
		{Range, "25-36", 12, "3"},
		{Range, "19-36", 18, "2"},
		{Even, "", 18, "2"},
		{Odd, "", 18, "2"},
		{Red, "", 18, "2"},
		{Black, "", 18, "2"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+tt.value, func(t *testing.T) {
			b := mustBet(t, tt.kind, tt.value)
			n := 0
			for p := 0; p < Pockets; p++ {
				if b.Covers(p) {
					n++
				}
			}
			assert.Equal(t, tt.count, n)
			assert.Equal(t, tt.mult, b.Multiplier().String())
			assert.False(t, tt.kind != Number && b.Covers(0), "zero must lose")
		})
	}

	_, err := ParseBet(Number, "37")
	assert.ErrorIs(t, err, ErrInvalidBet)
	_, err = ParseBet(Range, "2-13")
	assert.ErrorIs(t, err, ErrInvalidBet)
}

func TestSpin_HighStakeAlwaysLoses(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := NewWheel(rand.New(rand.NewPCG(rapid.Uint64().Draw(t, "seed"), 5)), decimal.NewFromInt(100), 0.37)
		b := Bet{Kind: rapid.SampledFrom([]Kind{Even, Odd, Red, Black}).Draw(t, "kind")}
		r := w.Settle(b, decimal.NewFromInt(rapid.Int64Range(101, 10_000).Draw(t, "stake")))
		if r.Won || b.Covers(r.Pocket) {
			t.Fatalf("high stake won on %d", r.Pocket)
		}
	})
}

func TestSpin_WinRate(t *testing.T) {
	w := NewWheel(rand.New(rand.NewPCG(42, 42)), decimal.NewFromInt(100), 0.37)
	b := Bet{Kind: Red}
	wins := 0
	const spins = 20_000
	for i := 0; i < spins; i++ {
		if b.Covers(w.Spin(b, decimal.NewFromInt(5))) {
			wins++
		}
	}
	assert.InDelta(t, 0.37, float64(wins)/spins, 0.02)
}

func TestTableStep(t *testing.T) {
	tb := NewTable(decimal.NewFromInt(2))
	tb.Step(-1)
	tb.Step(-1)
	assert.Equal(t, "1", tb.Stake.String())
	tb.Step(1)
	assert.Equal(t, "2", tb.Stake.String())
}

func TestBuildPanel_NumberGrid(t *testing.T) {
	tb := NewTable(decimal.NewFromInt(1))
	tb.Numbers = true
	kb := BuildPanel(tb, 99)
	require.Len(t, kb.InlineKeyboard, 7)
	last := kb.InlineKeyboard[6]
	require.Len(t, last, 2)
	d, ok := callback.Decode(last[0].Data)
	require.True(t, ok)
	assert.Equal(t, []string{"number", "36", "99"}, d.Args)
	assert.Equal(t, "Back", last[1].Text)
}
