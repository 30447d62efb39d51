package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/model"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

const (
	topLimit     = 10
	historyLimit = 10
)

// RankingHandler handles the leaderboard and transaction history.
type RankingHandler struct {
	*Deps
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(d *Deps) *RankingHandler {
	return &RankingHandler{Deps: d}
}

// HandleTop handles the /top command.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	users, err := h.Ranking.GetTopUsers(context.Background(), topLimit)
	if err != nil {
		return c.Reply("❌ Failed to load the leaderboard, please try again later.")
	}
	return c.Reply(formatTop(users))
}

// HandleHistory handles the /history command.
func (h *RankingHandler) HandleHistory(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	txs, err := h.Ranking.GetHistory(context.Background(), sender.ID, historyLimit)
	if err != nil {
		return c.Reply("❌ Failed to load your history, please try again later.")
	}
	return c.Reply(formatHistory(txs))
}

func formatTop(users []*model.User) string {
	var b strings.Builder
	b.WriteString("🏆 Top players\n━━━━━━━━━━━━━━━\n")
	if len(users) == 0 {
		b.WriteString("No players yet.\n")
		return b.String()
	}
	medals := []string{"🥇", "🥈", "🥉"}
	for i, u := range users {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		name := u.Username
		if name == "" {
			name = fmt.Sprintf("User%d", u.TelegramID)
		}
		fmt.Fprintf(&b, "%s %s: %s\n", rank, name, money.USD(u.Balance))
	}
	return b.String()
}

func formatHistory(txs []*model.Transaction) string {
	var b strings.Builder
	b.WriteString("📜 Recent transactions\n━━━━━━━━━━━━━━━\n")
	if len(txs) == 0 {
		b.WriteString("No transactions yet.\n")
		return b.String()
	}
	for _, tx := range txs {
		sign := ""
		if tx.Amount.IsPositive() {
			sign = "+"
		}
		fmt.Fprintf(&b, "%s %s%s %s", tx.CreatedAt.Format("01-02 15:04"), sign, money.USD(tx.Amount), tx.Type)
		if tx.Description != nil && *tx.Description != "" {
			fmt.Fprintf(&b, " (%s)", *tx.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
