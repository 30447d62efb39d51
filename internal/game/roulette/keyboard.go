package roulette

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

// CallbackGame is the callback prefix for roulette buttons.
const CallbackGame = "roul"

const (
	ActStart   = "start"
	ActBet     = "bet"
	ActNumbers = "numbers"
	ActPlus    = "plus"
	ActMinus   = "minus"
	ActBack    = "back"
	ActCancel  = "cancel"
)

func btn(text, action string, args ...any) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: callback.Encode(CallbackGame, action, args...)}
}

// BuildPanel is the main betting panel, or the number grid when
// t.Numbers is set.
func BuildPanel(t *Table, userID int64) *tele.ReplyMarkup {
	if t.Numbers {
		return buildNumbers(userID)
	}
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{btn("Start", ActStart, userID)},
		{btn("Bet on Numbers", ActNumbers, userID)},
		{
			btn("1 to 12", ActBet, Range, "1-12", userID),
			btn("13 to 24", ActBet, Range, "13-24", userID),
			btn("25 to 36", ActBet, Range, "25-36", userID),
		},
		{
			btn("1 to 18", ActBet, Range, "1-18", userID),
			btn("19 to 36", ActBet, Range, "19-36", userID),
		},
		{btn("Even", ActBet, Even, "-", userID), btn("Odd", ActBet, Odd, "-", userID)},
		{btn("🔴 Red", ActBet, Red, "-", userID), btn("⚫ Black", ActBet, Black, "-", userID)},
		{btn("Bet +$1", ActPlus, userID), btn("Bet -$1", ActMinus, userID)},
		{btn("Cancel", ActCancel, userID)},
	}}
}

func buildNumbers(userID int64) *tele.ReplyMarkup {
	var rows [][]tele.InlineButton
	for i := 0; i < Pockets; i += 6 {
		var row []tele.InlineButton
		for n := i; n < min(i+6, Pockets); n++ {
			row = append(row, btn(fmt.Sprintf("%d %s", n, ColorEmoji(n)), ActBet, Number, n, userID))
		}
		rows = append(rows, row)
	}
	last := len(rows) - 1
	if len(rows[last]) < 6 {
		rows[last] = append(rows[last], btn("Back", ActBack, userID))
	} else {
		rows = append(rows, []tele.InlineButton{btn("Back", ActBack, userID)})
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

// FormatPanel renders the panel text, with the last result when there is one.
func FormatPanel(t *Table, balance decimal.Decimal, result string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎰 Roulette\n\nBet: %s\nBalance: %s\n", money.USD(t.Stake), money.USD(balance))
	if result != "" {
		b.WriteString(result)
		b.WriteString("\n\n")
	}
	selected := "None"
	if t.Bet != nil {
		selected = t.Bet.Label() + "\nMultiplier: " + t.Bet.Multiplier().StringFixed(2) + "x"
	}
	fmt.Fprintf(&b, "\nSelected bet: %s\n\nPlace your bet:", selected)
	return b.String()
}

// FormatResult describes a spin.
func FormatResult(r Result) string {
	if r.Won {
		return fmt.Sprintf("🎉 Spun: %d (%s). You won %s", r.Pocket, Color(r.Pocket), money.USD(r.Winnings))
	}
	return fmt.Sprintf("😞 Spun: %d (%s). You lost.", r.Pocket, Color(r.Pocket))
}
