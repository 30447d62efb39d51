package match

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

// Button actions. The callback game segment is the kind itself.
const (
	ActMode    = "mode"
	ActGuide   = "guide"
	ActCancel  = "cancel"
	ActPoints  = "points"
	ActConfirm = "confirm"
	ActPvP     = "pvp"
	ActBot     = "bot"
	ActAccept  = "accept"
	ActDecline = "decline"
	ActRoll    = "roll"
	ActAgain   = "again"
	ActDouble  = "double"
)

// Setup is a match being configured by its initiator.
type Setup struct {
	Settings
	// AwaitingUsername is set after "Challenge a Player" until the user
	// sends an @username.
	AwaitingUsername bool
	MessageID        int
}

func btn(text string, k Kind, action string, args ...any) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: callback.Encode(string(k), action, args...)}
}

var modeTitles = map[Mode]string{Normal: "Normal Mode", Double: "Double Roll", Crazy: "Crazy Mode"}

// ModeKeyboard is the first setup step.
func ModeKeyboard(k Kind, userID int64) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(Modes)+1)
	for _, m := range Modes {
		rows = append(rows, []tele.InlineButton{btn(modeTitles[m], k, ActMode, m, userID)})
	}
	rows = append(rows, []tele.InlineButton{
		btn("ℹ️ Mode Guide", k, ActGuide, userID),
		btn("❌ Cancel", k, ActCancel, userID),
	})
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

// PointsKeyboard picks the points to win.
func PointsKeyboard(k Kind, userID int64) *tele.ReplyMarkup {
	row := make([]tele.InlineButton, 0, MaxPoints)
	for p := 1; p <= MaxPoints; p++ {
		row = append(row, btn(fmt.Sprintf("🏆 %d", p), k, ActPoints, p, userID))
	}
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		row,
		{btn("❌ Cancel", k, ActCancel, userID)},
	}}
}

// ConfirmKeyboard confirms the configured settings.
func ConfirmKeyboard(k Kind, userID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		btn("✅ Confirm", k, ActConfirm, userID),
		btn("❌ Cancel", k, ActCancel, userID),
	}}}
}

// OpponentKeyboard chooses between a PvP challenge and the bot.
func OpponentKeyboard(k Kind, userID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{btn("👤 Challenge a Player", k, ActPvP, userID)},
		{btn("🤖 Play against Bot", k, ActBot, userID)},
		{btn("❌ Cancel", k, ActCancel, userID)},
	}}
}

// ChallengeKeyboard is shown to the challenged player.
func ChallengeKeyboard(k Kind, challengeID string) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		btn("✅ Accept", k, ActAccept, challengeID),
		btn("❌ Cancel", k, ActDecline, challengeID),
	}}}
}

// RollKeyboard carries the round so presses from older rounds are rejected.
func RollKeyboard(k Kind, round int) *tele.ReplyMarkup {
	prof := profiles[k]
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		btn(prof.Emoji+" "+prof.Verb, k, ActRoll, round),
	}}}
}

// FinishedKeyboard offers a rematch.
func FinishedKeyboard(k Kind, userID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		btn("🔄 Play Again", k, ActAgain, userID),
		btn("✖️ Double", k, ActDouble, userID),
	}}}
}

// ModeGuide explains every mode of a kind.
func ModeGuide(k Kind) string {
	prof := profiles[k]
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s modes\n\n", prof.Emoji, prof.Name)
	for _, m := range Modes {
		fmt.Fprintf(&b, "• %s: %s\n", modeTitles[m], Describe(k, m))
	}
	return b.String()
}

// FormatConfirm summarises a setup before it is confirmed.
func FormatConfirm(s Settings, multiplier string) string {
	prof := profiles[s.Kind]
	return fmt.Sprintf("%s Game confirmation\n\nGame: %s\nFirst to %d points\nMode: %s\nBet: %s\nWin multiplier: %sx",
		prof.Emoji, prof.Name, s.Points, modeTitles[s.Mode], money.USD(s.Stake), multiplier)
}

// FormatChallenge invites the target.
func FormatChallenge(ch *Challenge) string {
	prof := profiles[ch.Settings.Kind]
	return fmt.Sprintf("%s %s challenges %s!\n\nMode: %s\nFirst to %d points\nBet: %s each",
		prof.Emoji, ch.Challenger.Name, ch.Target.Name,
		modeTitles[ch.Settings.Mode], ch.Settings.Points, money.USD(ch.Settings.Stake))
}

// FormatTurn prompts the side on turn.
func FormatTurn(m *Match) string {
	prof := profiles[m.Settings.Kind]
	side := m.Turn()
	p := m.Players[side]
	left := m.RollsLeft()
	tally := m.Tally()
	return fmt.Sprintf("Round %d\n%s: %d | %s: %d\n\n%s, your turn! %s (%d left)",
		m.Round(), m.Players[0].Name, tally[0], m.Players[1].Name, tally[1],
		p.Name, prof.Emoji, left)
}

// FormatRound reports a scored round.
func FormatRound(m *Match, r *RoundResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d results\n", r.Number)
	for i, p := range m.Players {
		fmt.Fprintf(&b, "%s: %v (score %d)\n", p.Name, r.Rolls[i], r.Scores[i])
	}
	if r.Point < 0 {
		b.WriteString("No point this round.\n")
	} else {
		fmt.Fprintf(&b, "Point to %s!\n", m.Players[r.Point].Name)
	}
	fmt.Fprintf(&b, "\nScore: %s %d - %d %s", m.Players[0].Name, r.Tally[0], r.Tally[1], m.Players[1].Name)
	return b.String()
}

// FormatWinner announces the end of a match.
func FormatWinner(m *Match, winner int, prize string) string {
	tally := m.Tally()
	w := m.Players[winner]
	if w.IsHouse() {
		return fmt.Sprintf("🤖 The bot wins %d-%d. Better luck next time!", tally[1], tally[0])
	}
	return fmt.Sprintf("🏆 %s wins the match %d-%d and takes %s!", w.Name, tally[winner], tally[1-winner], prize)
}
