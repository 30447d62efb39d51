package predict

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "goal", Football.Outcome(4))
	assert.Equal(t, "goal", Football.Outcome(5))
	assert.Equal(t, "bar", Football.Outcome(3))
	assert.Equal(t, "miss", Football.Outcome(1))
	assert.Equal(t, "score", Basketball.Outcome(5))
	assert.Equal(t, "stuck", Basketball.Outcome(3))
	assert.Equal(t, "miss", Basketball.Outcome(6))
	assert.Equal(t, "6", Dart.Outcome(6))
}

func TestMultiplier(t *testing.T) {
	assert.Equal(t, "5.76", Dice.Multiplier("3").String())
	assert.True(t, Dice.Multiplier("7").IsZero())
	assert.True(t, Dice.Multiplier("goal").IsZero())
	assert.Equal(t, "3.7", Basketball.Multiplier("stuck").String())
	assert.Equal(t, "1.6", Football.Multiplier("goal").String())
}

func TestPanelBetBounds(t *testing.T) {
	p := NewPanel()
	p.Half()
	assert.Equal(t, "0.5", p.Bet.String())
	p.Half()
	p.Half()
	assert.Equal(t, "0.25", p.Bet.String())
	for i := 0; i < 10; i++ {
		p.Double()
	}
	assert.Equal(t, "50", p.Bet.String())
}

func TestRotateClearsPrediction(t *testing.T) {
	p := NewPanel()
	require.NoError(t, p.Predict("2"))
	p.Rotate(-1)
	assert.Equal(t, Basketball, p.Mode)
	assert.Empty(t, p.Prediction)
	assert.ErrorIs(t, p.Predict("2"), ErrBadPrediction)
	p.Rotate(1)
	assert.Equal(t, Dice, p.Mode)
}

func TestSettle(t *testing.T) {
	p := NewPanel()
	_, err := p.Settle(3)
	assert.ErrorIs(t, err, ErrNoPrediction)

	p.Mode = Football
	p.Bet = decimal.NewFromInt(10)
	require.NoError(t, p.Predict("bar"))
	r, err := p.Settle(3)
	require.NoError(t, err)
	assert.True(t, r.Won)
	assert.Equal(t, "24", r.Winnings.String())
	assert.Empty(t, p.Prediction)
}

func TestSettle_WinOnlyOnMatch(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := NewPanel()
		p.Mode = rapid.SampledFrom(Modes).Draw(t, "mode")
		choice := rapid.SampledFrom(p.Mode.Choices()).Draw(t, "choice")
		if err := p.Predict(choice); err != nil {
			t.Fatal(err)
		}
		v := rapid.IntRange(1, 6).Draw(t, "value")
		r, err := p.Settle(v)
		if err != nil {
			t.Fatal(err)
		}
		if r.Won != (p.Mode.Outcome(v) == choice) {
			t.Fatalf("won=%v for %s pick %s value %d", r.Won, p.Mode, choice, v)
		}
		if r.Won == r.Winnings.IsZero() {
			t.Fatalf("winnings %s with won=%v", r.Winnings, r.Won)
		}
	})
}
