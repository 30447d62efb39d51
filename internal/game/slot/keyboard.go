package slot

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

// CallbackGame is the callback prefix for slot buttons.
const CallbackGame = "slots"

const (
	ActMinus  = "minus"
	ActPlus   = "plus"
	ActMin    = "min"
	ActDouble = "double"
	ActMax    = "max"
	ActSpin   = "spin"
	ActCombos = "combos"
	ActBack   = "back"
)

func btn(text, action string, userID int64) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: callback.Encode(CallbackGame, action, userID)}
}

// BuildPanel builds the bet panel.
//   - Row 1: [-1] [bet] [+1]
//   - Row 2: [Min] [x2] [Max]
//   - Row 3: [Spin]
//   - Row 4: [Combos]
func BuildPanel(userID int64, bet decimal.Decimal) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{btn("➖ 1", ActMinus, userID), btn(money.USD(bet), ActSpin, userID), btn("➕ 1", ActPlus, userID)},
		{btn("Min", ActMin, userID), btn("x2", ActDouble, userID), btn("Max", ActMax, userID)},
		{btn("🎰 Spin", ActSpin, userID)},
		{btn("📜 Combos", ActCombos, userID)},
	}}
}

// BuildBack returns to the panel from the combos screen.
func BuildBack(userID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{btn("⬅️ Back", ActBack, userID)}}}
}

// FormatPanel is the text above the bet panel.
func FormatPanel(bet decimal.Decimal) string {
	return fmt.Sprintf("🎰 Slots\n\nBet: %s\nPress Spin to play.", money.USD(bet))
}

// FormatCombos lists the paying combos.
func FormatCombos() string {
	var b strings.Builder
	b.WriteString("📜 Winning combos\n\n")
	for _, c := range Combos {
		fmt.Fprintf(&b, "%s  x%s\n", c.Label, c.Multiplier.String())
	}
	return b.String()
}

// FormatOutcome reports a spin.
func FormatOutcome(o Outcome, bet decimal.Decimal) string {
	if !o.Won() {
		return fmt.Sprintf("🎰 %s\n😢 No win. You lost %s.", o.Display(), money.USD(bet))
	}
	return fmt.Sprintf("🎰 %s\n🎉 %s pays x%s! You won %s.", o.Display(), o.Combo.Label, o.Combo.Multiplier.String(), money.USD(o.Winnings))
}
