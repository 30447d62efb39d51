package predict

import (
	"fmt"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

// CallbackGame is the callback prefix for predict buttons.
const CallbackGame = "predict"

const (
	ActPick   = "pick"
	ActHalf   = "half"
	ActDouble = "double"
	ActLeft   = "left"
	ActRight  = "right"
	ActNoop   = "noop"
	ActStart  = "start"
	ActCancel = "cancel"
)

func btn(text, action string, args ...any) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: callback.Encode(CallbackGame, action, args...)}
}

// BuildPanel renders the prediction choices and controls.
func BuildPanel(p *Panel, userID int64) *tele.ReplyMarkup {
	choices := make([]tele.InlineButton, 0, 6)
	for _, c := range p.Mode.Choices() {
		text := c
		if c == p.Prediction {
			text += " ✅"
		}
		choices = append(choices, btn(text, ActPick, c, userID))
	}
	rows := [][]tele.InlineButton{choices}
	if len(choices) > 3 {
		rows = [][]tele.InlineButton{choices[:3], choices[3:]}
	}
	rows = append(rows,
		[]tele.InlineButton{
			btn("Half Bet", ActHalf, userID),
			btn("Bet "+money.USD(p.Bet), ActNoop, userID),
			btn("Double Bet", ActDouble, userID),
		},
		[]tele.InlineButton{
			btn("⬅️", ActLeft, userID),
			btn(p.Mode.Emoji(), ActNoop, userID),
			btn("➡️", ActRight, userID),
		},
		[]tele.InlineButton{
			btn("❌ Cancel", ActCancel, userID),
			btn("▶️ Start", ActStart, userID),
		},
	)
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

// FormatPanel renders the panel text.
func FormatPanel(p *Panel, balance decimal.Decimal) string {
	s := fmt.Sprintf("%s %s Prediction\n\n", p.Mode.Emoji(), p.Mode.Title())
	if p.LastResult != "" {
		s += "Last game result:\n" + p.LastResult + "\n\n"
	}
	s += "Your balance: " + money.USD(balance) + "\n\n"
	if p.Prediction == "" {
		return s + "Make your prediction:"
	}
	return s + fmt.Sprintf("Your prediction: %s\nMultiplier: %sx", p.Prediction, p.Mode.Multiplier(p.Prediction).StringFixed(2))
}

// FormatResult describes a settled prediction.
func FormatResult(r Result) string {
	if r.Won {
		return fmt.Sprintf("✅ Won: Predicted '%s', got '%s' - +%s", r.Prediction, r.Outcome, money.USD(r.Winnings))
	}
	return fmt.Sprintf("❌ Lost: Predicted '%s', got '%s'", r.Prediction, r.Outcome)
}
