package coin

import (
	"fmt"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

// CallbackGame is the callback prefix for coin buttons.
const CallbackGame = "coin"

const (
	ActPick    = "pick"
	ActConfirm = "confirm"
	ActBot     = "bot"
	ActFlip    = "flip"
	ActCancel  = "cancel"
	ActAgain   = "again"
	ActDouble  = "double"
)

func btn(text, action string, args ...any) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: callback.Encode(CallbackGame, action, args...)}
}

// ChoiceKeyboard picks a side.
func ChoiceKeyboard(userID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{btn(Heads.Label(), ActPick, Heads, userID)},
		{btn(Tails.Label(), ActPick, Tails, userID)},
		{btn("❌ Cancel", ActCancel, userID)},
	}}
}

// ConfirmKeyboard confirms the pick.
func ConfirmKeyboard(userID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		btn("✅ Confirm", ActConfirm, userID),
		btn("❌ Cancel", ActCancel, userID),
	}}}
}

// OpponentKeyboard starts the flip against the house.
func OpponentKeyboard(userID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{btn("Play vs Bot", ActBot, userID)},
	}}
}

// FlipKeyboard throws the coin.
func FlipKeyboard(userID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{btn("Flip the Coin", ActFlip, userID)},
	}}
}

// FinishedKeyboard offers a replay.
func FinishedKeyboard(userID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		btn("Play Again", ActAgain, userID),
		btn("Double", ActDouble, userID),
	}}}
}

// FormatStart is the first setup message.
func FormatStart(stake decimal.Decimal) string {
	return fmt.Sprintf("🪙 Coin Flip\n\nBet: %s\nChoose heads or tails:", money.USD(stake))
}

// FormatConfirm summarises the setup.
func FormatConfirm(s *Setup, multiplier decimal.Decimal) string {
	return fmt.Sprintf("🪙 Game confirmation\n\nGame: Coin Flip\nYour pick: %s\nBet: %s\nWin multiplier: %sx",
		s.Choice, money.USD(s.Stake), multiplier.StringFixed(2))
}

// FormatAccepted is shown once the house is chosen.
func FormatAccepted(name string) string {
	return fmt.Sprintf("🪙 Match accepted!\n\nPlayer 1: %s\nPlayer 2: Bot\n\n%s, your turn! To start, click the button below", name, name)
}

// FormatResult reports a flip.
func FormatResult(name string, r Result, stake, balance decimal.Decimal) string {
	if r.Won {
		return fmt.Sprintf("🏆 Game over! The coin landed on %s.\n\nScore:\n%s • 1\nBot • 0\n\n🎉 Congratulations, %s! You won %s!\nNew balance: %s",
			r.Landed, name, name, money.USD(r.Winnings), money.USD(balance))
	}
	return fmt.Sprintf("🏆 Game over! The coin landed on %s.\n\nScore:\n%s • 0\nBot • 1\n\nBot wins! You lost %s.\nNew balance: %s",
		r.Landed, name, money.USD(stake), money.USD(balance))
}
