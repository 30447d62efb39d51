package mines

import (
	"fmt"

	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

// CallbackGame is the callback prefix for mines buttons.
const CallbackGame = "mine"

const (
	ActLeft    = "left"
	ActRight   = "right"
	ActNoop    = "noop"
	ActStart   = "startgame"
	ActChoose  = "choose"
	ActCashOut = "cashout"
	ActRules   = "rules"
	ActBack    = "back"
)

func btn(text, action string, args ...any) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: callback.Encode(CallbackGame, action, args...)}
}

// BuildKeyboard renders the grid (once a field exists) and the controls for
// the board's state.
func BuildKeyboard(b *Board, userID int64) *tele.ReplyMarkup {
	var rows [][]tele.InlineButton
	if b.State != Setup {
		rows = append(rows, gridRows(b, userID)...)
	}
	switch b.State {
	case Setup:
		rows = append(rows,
			[]tele.InlineButton{
				btn("⬅️", ActLeft, userID),
				btn(fmt.Sprintf("💣 %d", b.Mines), ActNoop, userID),
				btn("➡️", ActRight, userID),
			},
			[]tele.InlineButton{btn("▶️ Start Game", ActStart, userID)},
		)
	case Playing:
		rows = append(rows, []tele.InlineButton{btn("💰 Cash Out", ActCashOut, userID)})
	default:
		rows = append(rows, []tele.InlineButton{btn("▶️ Start Game", ActStart, userID)})
	}
	rows = append(rows, []tele.InlineButton{btn("📜 Rules", ActRules, userID)})
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func gridRows(b *Board, userID int64) [][]tele.InlineButton {
	rows := make([][]tele.InlineButton, GridSize)
	for r := 0; r < GridSize; r++ {
		row := make([]tele.InlineButton, GridSize)
		for c := 0; c < GridSize; c++ {
			row[c] = btn(tileText(b, Pos{r, c}), ActChoose, r, c, userID)
		}
		rows[r] = row
	}
	return rows
}

func tileText(b *Board, p Pos) string {
	t := b.Grid[p.Row][p.Col]
	switch {
	case b.State == Ended && t.Mine && b.shown(p):
		return "💣"
	case t.Revealed && !t.Mine:
		return t.Multiplier.StringFixed(2) + "x"
	}
	return "?"
}

// BuildBack leaves the rules screen.
func BuildBack(userID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{btn("⬅️ Back", ActBack, userID)}}}
}

// FormatBoard is the message text for the board's state.
func FormatBoard(b *Board, name string) string {
	head := fmt.Sprintf("💣 Mine Game for %s - Bet: %s\n", name, money.USD(b.Bet))
	switch b.State {
	case Setup:
		return head + "\nChoose number of mines:"
	case Playing:
		return head + fmt.Sprintf("Mines: %d\nTotal Multiplier: %sx\nPotential Winnings: %s",
			b.Mines, b.Multiplier.StringFixed(2), money.USD(b.Winnings()))
	}
	if b.EndedText != "" {
		return b.EndedText
	}
	return head + fmt.Sprintf("Mines: %d", b.Mines)
}

// FormatLoss ends a round on a mine.
func FormatLoss(b *Board, name string) string {
	return fmt.Sprintf("💣 Mine Game for %s - Bet: %s\nMines: %d\n\n💥 Boom! You hit a mine and lost your bet.",
		name, money.USD(b.Bet), b.Mines)
}

// FormatCashOut ends a round with a payout.
func FormatCashOut(b *Board, name, winnings, balance string) string {
	return fmt.Sprintf("💣 Mine Game for %s - Bet: %s\nMines: %d\n\n💰 Cashed out!\nTotal Multiplier: %sx\nWinnings: %s\nNew Balance: %s",
		name, money.USD(b.Bet), b.Mines, b.Multiplier.StringFixed(2), winnings, balance)
}

// Rules is the rules screen.
const Rules = "💣 Mine Game Rules 💣\n\n" +
	"• Grid: 5x5 tiles.\n" +
	"• Choose 1 to 24 mines.\n" +
	"• Uncover safe tiles to increase your multiplier.\n" +
	"• Hit a mine (💣) and lose your bet.\n" +
	"• Cash out anytime to secure winnings!"
