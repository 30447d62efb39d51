package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/game/tower"
	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/retry"
)

const towerCmd = "tower"

// TowerHandler runs the monkey tower climb.
type TowerHandler struct {
	*Deps
	towers *game.Sessions[*tower.Tower]
}

// NewTowerHandler creates a TowerHandler.
func NewTowerHandler(d *Deps) *TowerHandler {
	return &TowerHandler{
		Deps:   d,
		towers: game.NewSessions[*tower.Tower](d.Config.Games.SessionTTL),
	}
}

// HandleTower handles /tower <amount>.
func (h *TowerHandler) HandleTower(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	stake, err := parseStake(c)
	if errors.Is(err, errMissingStake) {
		return c.Reply("🐒 Usage: /tower <amount>\nExample: /tower 5")
	}
	if err != nil {
		return fail(c, err)
	}
	user, err := h.ensureUser(ctx, sender)
	if err != nil {
		return fail(c, err)
	}
	if err := h.checkStake(ctx, sender.ID, towerCmd, stake); err != nil {
		return fail(c, err)
	}
	if err := h.Locks.Lock(ctx, sender.ID); err != nil {
		return fail(c, err)
	}
	defer h.Locks.Unlock(sender.ID)
	key := keyOf(c)

	t := tower.New(stake)
	if err := h.towers.Start(key, t, func(cur *tower.Tower) bool { return cur.State == tower.Playing }); err != nil {
		return fail(c, err)
	}
	msg, err := h.send(c, tower.FormatBoard(t, user.Balance), tower.BuildKeyboard(t, sender.ID))
	if err != nil {
		return err
	}
	t.MessageID = msg.ID
	return nil
}

// Callback handles tower buttons.
func (h *TowerHandler) Callback(c tele.Context, d callback.Data) error {
	if !owner(c, d) {
		return notYours(c)
	}
	ctx := context.Background()
	sender := c.Sender()
	if err := h.Locks.Lock(ctx, sender.ID); err != nil {
		return fail(c, err)
	}
	defer h.Locks.Unlock(sender.ID)

	t, ok := h.towers.Get(keyOf(c))
	if !ok {
		return fail(c, game.ErrNoSession)
	}

	switch d.Action {
	case tower.ActNoop:
		return c.Respond()
	case tower.ActRules:
		_ = c.Respond()
		return h.edit(c, tower.Rules, tower.BuildBack(sender.ID))
	case tower.ActBack:
	case tower.ActLeft, tower.ActRight:
		dir := 1
		if d.Action == tower.ActLeft {
			dir = -1
		}
		if err := t.Rotate(dir); err != nil {
			return fail(c, ruleErr(err))
		}
		t.EndedText = ""
	case tower.ActStart:
		if !t.CanStart() {
			return fail(c, ruleErr(tower.ErrWrongState))
		}
		if h.onCooldown(ctx, sender.ID, towerCmd) {
			return alert(c, "⏰ Please wait a moment before starting another climb.")
		}
		if _, err := h.Accounts.PlaceBet(ctx, sender.ID, towerCmd, t.Bet); err != nil {
			return fail(c, err)
		}
		if err := t.Start(h.RNG); err != nil {
			h.refund(ctx, sender.ID, towerCmd, t.Bet)
			return fail(c, ruleErr(err))
		}
		h.Metrics.SessionStarted(towerCmd)
	case tower.ActChoose:
		col, err1 := d.Int(0)
		lvl, err2 := d.Int(1)
		if err1 != nil || err2 != nil {
			return badCallback(c, d)
		}
		out, err := t.Choose(lvl, col)
		if err != nil {
			return fail(c, ruleErr(err))
		}
		switch out {
		case tower.Monkey:
			t.EndedText = tower.FormatLoss(t, h.balance(ctx, sender.ID))
			h.Metrics.SessionEnded(towerCmd)
			h.settled(towerCmd, false)
			log.Info().Int64("user_id", sender.ID).Str("mode", string(t.Mode)).Int("level", lvl+1).Msg("Tower climb lost")
		case tower.Top:
			winnings := t.Winnings()
			balance := h.payout(ctx, sender.ID, towerCmd, winnings)
			t.EndedText = tower.FormatTop(t, balance, winnings)
			h.Metrics.SessionEnded(towerCmd)
			h.settled(towerCmd, true)
			log.Info().Int64("user_id", sender.ID).Str("mode", string(t.Mode)).Str("winnings", winnings.String()).Msg("Tower top reached")
		}
	case tower.ActCashOut:
		winnings, err := t.CashOut()
		if err != nil {
			return fail(c, ruleErr(err))
		}
		balance := h.payout(ctx, sender.ID, towerCmd, winnings)
		t.EndedText = tower.FormatCashOut(t, balance, winnings)
		h.Metrics.SessionEnded(towerCmd)
		h.settled(towerCmd, true)
		log.Info().Int64("user_id", sender.ID).Str("mode", string(t.Mode)).Int("level", t.Level).Str("winnings", winnings.String()).Msg("Tower cashed out")
	default:
		return badCallback(c, d)
	}

	_ = c.Respond()
	return h.edit(c, tower.FormatBoard(t, h.balance(ctx, sender.ID)), tower.BuildKeyboard(t, sender.ID))
}

// Sweep drops idle towers; an abandoned climb keeps its stake with the house.
func (h *TowerHandler) Sweep(ctx context.Context, s retry.Sender) {
	for key, t := range h.towers.Sweep() {
		if t.State != tower.Playing {
			continue
		}
		h.Metrics.SessionEnded(towerCmd)
		h.settled(towerCmd, false)
		log.Info().Int64("user_id", key.UserID).Str("bet", t.Bet.String()).Msg("Idle tower climb forfeited")
		if t.MessageID == 0 {
			continue
		}
		msg := &tele.Message{ID: t.MessageID, Chat: &tele.Chat{ID: key.ChatID}}
		if _, err := h.Retry.Edit(ctx, s, msg, "⌛ The climb timed out and the bet was lost."); err != nil {
			log.Debug().Err(err).Msg("Failed to close idle tower")
		}
	}
}
