package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/game/mines"
	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/money"
	"github.com/goblinua/medinispx/internal/pkg/retry"
)

const minesCmd = "mine"

// MinesHandler runs the mines grid game.
type MinesHandler struct {
	*Deps
	boards *game.Sessions[*mines.Board]
}

// NewMinesHandler creates a MinesHandler.
func NewMinesHandler(d *Deps) *MinesHandler {
	return &MinesHandler{
		Deps:   d,
		boards: game.NewSessions[*mines.Board](d.Config.Games.SessionTTL),
	}
}

// HandleMine handles /mine <amount>.
func (h *MinesHandler) HandleMine(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	stake, err := parseStake(c)
	if errors.Is(err, errMissingStake) {
		return c.Reply("💣 Usage: /mine <amount>\nExample: /mine 5")
	}
	if err != nil {
		return fail(c, err)
	}
	if _, err := h.ensureUser(ctx, sender); err != nil {
		return fail(c, err)
	}
	if err := h.checkStake(ctx, sender.ID, minesCmd, stake); err != nil {
		return fail(c, err)
	}
	if err := h.Locks.Lock(ctx, sender.ID); err != nil {
		return fail(c, err)
	}
	defer h.Locks.Unlock(sender.ID)
	key := keyOf(c)

	b := mines.New(stake)
	if err := h.boards.Start(key, b, func(cur *mines.Board) bool { return cur.State == mines.Playing }); err != nil {
		return fail(c, err)
	}
	msg, err := h.send(c, mines.FormatBoard(b, displayName(sender)), mines.BuildKeyboard(b, sender.ID))
	if err != nil {
		return err
	}
	b.MessageID = msg.ID
	return nil
}

// Callback handles mines buttons.
func (h *MinesHandler) Callback(c tele.Context, d callback.Data) error {
	if !owner(c, d) {
		return notYours(c)
	}
	ctx := context.Background()
	sender := c.Sender()
	if err := h.Locks.Lock(ctx, sender.ID); err != nil {
		return fail(c, err)
	}
	defer h.Locks.Unlock(sender.ID)

	b, ok := h.boards.Get(keyOf(c))
	if !ok {
		return fail(c, game.ErrNoSession)
	}
	name := displayName(sender)

	switch d.Action {
	case mines.ActNoop:
		return c.Respond()
	case mines.ActRules:
		_ = c.Respond()
		return h.edit(c, mines.Rules, mines.BuildBack(sender.ID))
	case mines.ActBack:
	case mines.ActLeft:
		if err := b.Left(); err != nil {
			return fail(c, ruleErr(err))
		}
	case mines.ActRight:
		if err := b.Right(); err != nil {
			return fail(c, ruleErr(err))
		}
	case mines.ActStart:
		if !b.CanStart() {
			return fail(c, ruleErr(mines.ErrWrongState))
		}
		if h.onCooldown(ctx, sender.ID, minesCmd) {
			return alert(c, "⏰ Please wait a moment before starting another round.")
		}
		if _, err := h.Accounts.PlaceBet(ctx, sender.ID, minesCmd, b.Bet); err != nil {
			return fail(c, err)
		}
		if err := b.Start(h.RNG); err != nil {
			h.refund(ctx, sender.ID, minesCmd, b.Bet)
			return fail(c, ruleErr(err))
		}
		h.Metrics.SessionStarted(minesCmd)
	case mines.ActChoose:
		row, err1 := d.Int(0)
		col, err2 := d.Int(1)
		if err1 != nil || err2 != nil {
			return badCallback(c, d)
		}
		hit, err := b.Reveal(h.RNG, mines.Pos{Row: row, Col: col})
		if err != nil {
			return fail(c, ruleErr(err))
		}
		if hit {
			b.EndedText = mines.FormatLoss(b, name)
			h.Metrics.SessionEnded(minesCmd)
			h.settled(minesCmd, false)
			log.Info().Int64("user_id", sender.ID).Str("bet", b.Bet.String()).Int("mines", b.Mines).Int("safe", b.Safe).Msg("Mines round lost")
		}
	case mines.ActCashOut:
		winnings, err := b.CashOut(h.RNG)
		if err != nil {
			return fail(c, ruleErr(err))
		}
		balance := h.payout(ctx, sender.ID, minesCmd, winnings)
		b.EndedText = mines.FormatCashOut(b, name, money.USD(winnings), money.USD(balance))
		h.Metrics.SessionEnded(minesCmd)
		h.settled(minesCmd, true)
		log.Info().Int64("user_id", sender.ID).Str("bet", b.Bet.String()).Str("winnings", winnings.String()).Msg("Mines cashed out")
	default:
		return badCallback(c, d)
	}

	_ = c.Respond()
	return h.edit(c, mines.FormatBoard(b, name), mines.BuildKeyboard(b, sender.ID))
}

// Sweep forfeits boards abandoned mid-round; the stake stays with the house.
func (h *MinesHandler) Sweep(ctx context.Context, s retry.Sender) {
	for key, b := range h.boards.Sweep() {
		if b.State != mines.Playing {
			continue
		}
		b.Forfeit(h.RNG)
		h.Metrics.SessionEnded(minesCmd)
		h.settled(minesCmd, false)
		log.Info().Int64("user_id", key.UserID).Str("bet", b.Bet.String()).Msg("Idle mines round forfeited")
		if b.MessageID == 0 {
			continue
		}
		msg := &tele.Message{ID: b.MessageID, Chat: &tele.Chat{ID: key.ChatID}}
		if _, err := h.Retry.Edit(ctx, s, msg, "⌛ The round timed out and the bet was lost."); err != nil {
			log.Debug().Err(err).Msg("Failed to close idle mines board")
		}
	}
}
