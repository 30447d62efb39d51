package tower

import (
	"fmt"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

// CallbackGame is the callback prefix for tower buttons.
const CallbackGame = "tower"

const (
	ActLeft    = "left"
	ActRight   = "right"
	ActNoop    = "noop"
	ActStart   = "start"
	ActChoose  = "choose"
	ActCashOut = "cashout"
	ActRules   = "rules"
	ActBack    = "back"
)

func btn(text, action string, args ...any) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: callback.Encode(CallbackGame, action, args...)}
}

// BuildKeyboard renders the tower top-down followed by the controls.
func BuildKeyboard(t *Tower, userID int64) *tele.ReplyMarkup {
	var rows [][]tele.InlineButton
	if t.State != Setup {
		for lvl := Levels - 1; lvl >= 0; lvl-- {
			row := make([]tele.InlineButton, t.Mode.Columns())
			for col := range row {
				row[col] = cell(t, lvl, col, userID)
			}
			rows = append(rows, row)
		}
	}
	if t.State == Playing && t.Level > 0 {
		rows = append(rows, []tele.InlineButton{btn("Cash Out", ActCashOut, userID)})
	} else if t.State != Playing {
		rows = append(rows, []tele.InlineButton{btn("Start Game", ActStart, userID)})
	}
	if t.State != Playing {
		rows = append(rows, []tele.InlineButton{
			btn("⬅️", ActLeft, userID),
			btn(string(t.Mode), ActNoop, userID),
			btn("➡️", ActRight, userID),
		})
	}
	rows = append(rows, []tele.InlineButton{btn("Rules", ActRules, userID)})
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func cell(t *Tower, lvl, col int, userID int64) tele.InlineButton {
	mark := func(s string) string {
		if t.Picked[lvl] == col {
			return "> " + s + " <"
		}
		return s
	}
	switch {
	case t.State == Ended:
		// Only the primary monkey is revealed.
		emoji := "🌴"
		if lvl == Levels-1 {
			emoji = "🍌"
		}
		if col == t.Monkeys[lvl] || (t.Picked[lvl] == col && t.IsMonkey(lvl, col)) {
			emoji = "🐒"
		}
		return btn(mark(emoji), ActNoop, userID)
	case lvl < t.Level:
		if t.Picked[lvl] == col {
			return btn(mark("🌴"), ActNoop, userID)
		}
		return btn(" ", ActNoop, userID)
	case lvl == t.Level:
		emoji := "🟩"
		if lvl == Levels-1 {
			emoji = "🍌"
		}
		return btn(emoji, ActChoose, col, lvl, userID)
	}
	return btn(" ", ActNoop, userID)
}

// BuildBack leaves the rules screen.
func BuildBack(userID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{btn("Back", ActBack, userID)}}}
}

func header(t *Tower, balance decimal.Decimal) string {
	return fmt.Sprintf("🐒 Monkey Tower\n\nBet: %s\nBalance: %s\n\n", money.USD(t.Bet), money.USD(balance))
}

// FormatBoard is the message text for the tower's state.
func FormatBoard(t *Tower, balance decimal.Decimal) string {
	switch t.State {
	case Setup:
		return header(t, balance) + "Choose game mode:"
	case Playing:
		s := header(t, balance) + fmt.Sprintf("Level %d: Choose a spot", t.Level+1)
		if t.Level > 0 {
			s += "\nPotential Cash-Out: " + money.USD(t.Winnings())
		}
		return s
	}
	if t.EndedText != "" {
		return t.EndedText
	}
	return header(t, balance) + "Choose game mode:"
}

// FormatLoss ends a climb on a monkey.
func FormatLoss(t *Tower, balance decimal.Decimal) string {
	return header(t, balance) + "You found the monkey and lost."
}

// FormatTop ends a climb at the top.
func FormatTop(t *Tower, balance, winnings decimal.Decimal) string {
	return header(t, balance) + "Reached the top! Won " + money.USD(winnings)
}

// FormatCashOut ends a climb with a cash-out.
func FormatCashOut(t *Tower, balance, winnings decimal.Decimal) string {
	return header(t, balance) + "Cashed out! Won " + money.USD(winnings)
}

// Rules is the rules screen.
const Rules = "🐒 Monkey Tower\n\n" +
	"• Modes: Easy (4 spots), Medium (3 spots), Hard (2 spots).\n" +
	"• Pick a safe spot each level.\n" +
	"• Avoid monkeys (🐒) or lose.\n" +
	"• Cash out after any level.\n" +
	"• Reach level 9 for bananas (🍌) and big wins!"
