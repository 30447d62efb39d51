package coin

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

type fixedRNG float64

func (f fixedRNG) IntN(int) int     { return 0 }
func (f fixedRNG) Float64() float64 { return float64(f) }

func TestFlip(t *testing.T) {
	mult := decimal.RequireFromString("1.92")
	stake := decimal.NewFromInt(10)

	win := NewFlipper(fixedRNG(0.39), 0.4, mult).Flip(Heads, stake)
	assert.True(t, win.Won)
	assert.Equal(t, Heads, win.Landed)
	assert.Equal(t, "19.2", win.Winnings.String())

	loss := NewFlipper(fixedRNG(0.4), 0.4, mult).Flip(Heads, stake)
	assert.False(t, loss.Won)
	assert.Equal(t, Tails, loss.Landed)
	assert.True(t, loss.Winnings.IsZero())
}

func TestFlip_LandedMatchesOutcome(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint64().Draw(t, "seed")
		choice := rapid.SampledFrom([]Side{Heads, Tails}).Draw(t, "choice")
		f := NewFlipper(rand.New(rand.NewPCG(seed, 2)), 0.4, decimal.RequireFromString("1.92"))
		r := f.Flip(choice, decimal.NewFromInt(1))
		if r.Won != (r.Landed == choice) {
			t.Fatalf("won=%v but landed %s for pick %s", r.Won, r.Landed, choice)
		}
	})
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("tails")
	assert.NoError(t, err)
	assert.Equal(t, Tails, s)
	assert.Equal(t, Heads, s.Other())

	_, err = ParseSide("edge")
	assert.ErrorIs(t, err, ErrInvalidSide)
}
