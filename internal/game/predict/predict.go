// Package predict implements the outcome prediction game: guess what the
// next Telegram dice animation lands on.
package predict

import (
	"errors"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/pkg/money"
)

// Mode is the animation being predicted.
type Mode string

const (
	Dice       Mode = "dice"
	Dart       Mode = "dart"
	Bowling    Mode = "bowling"
	Football   Mode = "football"
	Basketball Mode = "basketball"
)

// Modes in rotation order.
var Modes = []Mode{Dice, Dart, Bowling, Football, Basketball}

var emojis = map[Mode]string{Dice: "🎲", Dart: "🎯", Bowling: "🎳", Football: "⚽", Basketball: "🏀"}

// Emoji is the Telegram dice emoji for the mode.
func (m Mode) Emoji() string { return emojis[m] }

// Title is the capitalised mode name.
func (m Mode) Title() string {
	if m == "" {
		return ""
	}
	return string(m[0]-'a'+'A') + string(m[1:])
}

var exact = decimal.RequireFromString("5.76")

var named = map[Mode]map[string]decimal.Decimal{
	Football: {
		"goal": decimal.RequireFromString("1.6"),
		"miss": decimal.RequireFromString("2.4"),
		"bar":  decimal.RequireFromString("2.4"),
	},
	Basketball: {
		"score": decimal.RequireFromString("2.3"),
		"miss":  decimal.RequireFromString("1.6"),
		"stuck": decimal.RequireFromString("3.7"),
	},
}

var choiceOrder = map[Mode][]string{
	Football:   {"goal", "miss", "bar"},
	Basketball: {"score", "miss", "stuck"},
}

// Choices lists the predictions available in a mode.
func (m Mode) Choices() []string {
	if c, ok := choiceOrder[m]; ok {
		return c
	}
	return []string{"1", "2", "3", "4", "5", "6"}
}

// Multiplier returns the payout multiplier for a prediction, zero if the
// prediction is not valid for the mode.
func (m Mode) Multiplier(choice string) decimal.Decimal {
	if t, ok := named[m]; ok {
		if d, ok := t[choice]; ok {
			return d
		}
		return decimal.Zero
	}
	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > 6 {
		return decimal.Zero
	}
	return exact
}

// Outcome maps a dice value to the outcome name for the mode.
func (m Mode) Outcome(value int) string {
	switch m {
	case Football:
		switch value {
		case 4, 5:
			return "goal"
		case 3:
			return "bar"
		}
		return "miss"
	case Basketball:
		switch value {
		case 4, 5:
			return "score"
		case 3:
			return "stuck"
		}
		return "miss"
	}
	return strconv.Itoa(value)
}

// Bet bounds.
var (
	MinBet     = decimal.RequireFromString("0.25")
	MaxBet     = decimal.NewFromInt(50)
	DefaultBet = decimal.NewFromInt(1)
)

var (
	ErrNoPrediction  = errors.New("please make a prediction first")
	ErrBadPrediction = errors.New("that prediction is not available in this mode")
)

// Panel is one user's prediction panel.
type Panel struct {
	Mode       Mode
	Prediction string
	Bet        decimal.Decimal
	LastResult string
	MessageID  int
}

// NewPanel opens a dice panel with the default bet.
func NewPanel() *Panel {
	return &Panel{Mode: Dice, Bet: DefaultBet}
}

// Predict selects a prediction.
func (p *Panel) Predict(choice string) error {
	if p.Mode.Multiplier(choice).IsZero() {
		return ErrBadPrediction
	}
	p.Prediction = choice
	return nil
}

// Half halves the bet, not below MinBet.
func (p *Panel) Half() {
	p.Bet = decimal.Max(MinBet, money.Floor(p.Bet.Div(decimal.NewFromInt(2))))
}

// Double doubles the bet, not above MaxBet.
func (p *Panel) Double() {
	p.Bet = decimal.Min(MaxBet, p.Bet.Mul(decimal.NewFromInt(2)))
}

// Rotate switches mode and clears the prediction.
func (p *Panel) Rotate(dir int) {
	i := 0
	for j, m := range Modes {
		if m == p.Mode {
			i = j
		}
	}
	step := 1
	if dir < 0 {
		step = -1
	}
	p.Mode = Modes[(i+step+len(Modes))%len(Modes)]
	p.Prediction = ""
}

// Result is a settled prediction.
type Result struct {
	Prediction string
	Outcome    string
	Won        bool
	Winnings   decimal.Decimal
}

// Settle scores a dice value against the current prediction and clears it.
// The stake is taken before the dice is sent.
func (p *Panel) Settle(value int) (Result, error) {
	if p.Prediction == "" {
		return Result{}, ErrNoPrediction
	}
	r := Result{Prediction: p.Prediction, Outcome: p.Mode.Outcome(value), Winnings: decimal.Zero}
	if r.Outcome == r.Prediction {
		r.Won = true
		r.Winnings = money.Payout(p.Bet, p.Mode.Multiplier(p.Prediction))
	}
	p.Prediction = ""
	return r, nil
}
