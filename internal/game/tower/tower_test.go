package tower

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRotate(t *testing.T) {
	tw := New(decimal.NewFromInt(1))
	assert.Equal(t, Medium, tw.Mode)
	require.NoError(t, tw.Rotate(1))
	assert.Equal(t, Hard, tw.Mode)
	require.NoError(t, tw.Rotate(1))
	assert.Equal(t, Easy, tw.Mode)
	require.NoError(t, tw.Rotate(-1))
	assert.Equal(t, Hard, tw.Mode)

	require.NoError(t, tw.Start(rand.New(rand.NewPCG(1, 1))))
	assert.ErrorIs(t, tw.Rotate(1), ErrWrongState)
}

func TestMonkeyCounts(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mode := rapid.SampledFrom(Modes).Draw(t, "mode")
		tw := New(decimal.NewFromInt(1))
		tw.Mode = mode
		if err := tw.Start(rand.New(rand.NewPCG(rapid.Uint64().Draw(t, "seed"), 3))); err != nil {
			t.Fatal(err)
		}
		for lvl := 0; lvl < Levels; lvl++ {
			monkeys := 0
			for col := 0; col < mode.Columns(); col++ {
				if tw.IsMonkey(lvl, col) {
					monkeys++
				}
			}
			want := 1 + extraMonkeys[mode][lvl]
			if monkeys != want {
				t.Fatalf("%s level %d: %d monkeys, want %d", mode, lvl, monkeys, want)
			}
			if mode != Hard && monkeys >= mode.Columns() {
				t.Fatalf("%s level %d has no safe column", mode, lvl)
			}
		}
	})
}

func safeColumn(tw *Tower, lvl int) int {
	for c := 0; c < tw.Mode.Columns(); c++ {
		if !tw.IsMonkey(lvl, c) {
			return c
		}
	}
	return -1
}

func TestClimbToTop(t *testing.T) {
	tw := New(decimal.NewFromInt(2))
	tw.Mode = Easy
	require.NoError(t, tw.Start(rand.New(rand.NewPCG(9, 9))))

	_, err := tw.CashOut()
	assert.ErrorIs(t, err, ErrNothingToCash)
	_, err = tw.Choose(1, 0)
	assert.ErrorIs(t, err, ErrWrongLevel)
	_, err = tw.Choose(0, 4)
	assert.ErrorIs(t, err, ErrBadColumn)

	var out Outcome
	for lvl := 0; lvl < Levels; lvl++ {
		out, err = tw.Choose(lvl, safeColumn(tw, lvl))
		require.NoError(t, err)
	}
	assert.Equal(t, Top, out)
	assert.Equal(t, Ended, tw.State)
	assert.Equal(t, "26.1", tw.Winnings().String())
}

func TestHardIsBlockedFromLevelFour(t *testing.T) {
	tw := New(decimal.NewFromInt(1))
	tw.Mode = Hard
	require.NoError(t, tw.Start(rand.New(rand.NewPCG(5, 5))))
	for lvl := 3; lvl < Levels; lvl++ {
		assert.Equal(t, -1, safeColumn(tw, lvl), "level %d", lvl)
	}
}

func TestCashOutAndMonkey(t *testing.T) {
	tw := New(decimal.NewFromInt(10))
	require.NoError(t, tw.Start(rand.New(rand.NewPCG(4, 4))))
	for lvl := 0; lvl < 2; lvl++ {
		out, err := tw.Choose(lvl, safeColumn(tw, lvl))
		require.NoError(t, err)
		assert.Equal(t, Climbed, out)
	}
	w, err := tw.CashOut()
	require.NoError(t, err)
	assert.Equal(t, "22.1", w.String())

	require.NoError(t, tw.Start(rand.New(rand.NewPCG(4, 4))))
	out, err := tw.Choose(0, tw.Monkeys[0])
	require.NoError(t, err)
	assert.Equal(t, Monkey, out)
	_, err = tw.CashOut()
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestBuildKeyboardShape(t *testing.T) {
	tw := New(decimal.NewFromInt(1))
	assert.Len(t, BuildKeyboard(tw, 1).InlineKeyboard, 3)

	require.NoError(t, tw.Start(rand.New(rand.NewPCG(2, 2))))
	kb := BuildKeyboard(tw, 1)
	require.Len(t, kb.InlineKeyboard, Levels+1)
	bottom := kb.InlineKeyboard[Levels-1]
	assert.Len(t, bottom, Medium.Columns())
	assert.Equal(t, "🟩", bottom[0].Text)
}
