package slot

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/goblinua/medinispx/internal/pkg/callback"
)

func TestDecodeSlot(t *testing.T) {
	tests := []struct {
		name      string
		slotValue int
		wantLeft  int
		wantMid   int
		wantRight int
	}{
		{"value 1 is bar bar bar", 1, 1, 1, 1},
		{"value 22 is grape x3", 22, 2, 2, 2},
		{"value 43 is lemon x3", 43, 3, 3, 3},
		{"value 64 is 777", 64, 4, 4, 4},
		{"value 2", 2, 2, 1, 1},
		{"value 5", 5, 1, 2, 1},
		{"value 17", 17, 1, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left, middle, right := DecodeSlot(tt.slotValue)
			assert.Equal(t, [3]int{tt.wantLeft, tt.wantMid, tt.wantRight}, [3]int{left, middle, right})
		})
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.IntRange(1, 64).Draw(t, "v")
		l, m, r := DecodeSlot(v)
		for _, s := range []int{l, m, r} {
			if s < 1 || s > 4 {
				t.Fatalf("symbol %d out of range for %d", s, v)
			}
		}
		if got := EncodeSlot(l, m, r); got != v {
			t.Fatalf("EncodeSlot(DecodeSlot(%d)) = %d", v, got)
		}
	})
}

func TestEvaluate(t *testing.T) {
	bet := decimal.NewFromInt(2)
	tests := []struct {
		name  string
		reels [3]int
		want  string
	}{
		{"777", [3]int{4, 4, 4}, "40"},
		{"triple bar", [3]int{1, 1, 1}, "14"},
		{"seven seven left", [3]int{4, 4, 2}, "4"},
		{"seven seven right", [3]int{3, 4, 4}, "2"},
		{"bar bar", [3]int{1, 1, 3}, "1"},
		{"lemon lemon", [3]int{3, 3, 1}, "0.5"},
		{"grape grape", [3]int{2, 2, 4}, "0.5"},
		{"nothing", [3]int{1, 2, 3}, "0"},
		{"split sevens", [3]int{4, 1, 4}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Evaluate(EncodeSlot(tt.reels[0], tt.reels[1], tt.reels[2]), bet)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Winnings.String())
			assert.Equal(t, tt.want != "0", out.Won())
		})
	}

	_, err := Evaluate(65, bet)
	assert.ErrorIs(t, err, ErrInvalidSlotValue)
}

func TestAdjust(t *testing.T) {
	one := decimal.NewFromInt(1)
	assert.Equal(t, "0.25", Adjust(one, ActMinus).String())
	assert.Equal(t, "2", Adjust(one, ActPlus).String())
	assert.Equal(t, "50", Adjust(decimal.NewFromInt(30), ActDouble).String())
	assert.Equal(t, "0.25", Adjust(decimal.NewFromInt(7), ActMin).String())
	assert.Equal(t, "50", Adjust(one, ActMax).String())
}

func TestBuildPanel_CallbacksFit(t *testing.T) {
	kb := BuildPanel(-1001234567890, decimal.NewFromInt(5))
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			assert.LessOrEqual(t, len(b.Data), callback.MaxLen)
			d, ok := callback.Decode(b.Data)
			require.True(t, ok)
			assert.Equal(t, CallbackGame, d.Game)
		}
	}
}
