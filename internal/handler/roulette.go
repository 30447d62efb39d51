package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/game/roulette"
	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/money"
	"github.com/goblinua/medinispx/internal/pkg/retry"
)

const rouletteCmd = "roul"

// RouletteHandler runs the roulette panel.
type RouletteHandler struct {
	*Deps
	wheel  *roulette.Wheel
	tables *game.Sessions[*roulette.Table]
}

// NewRouletteHandler creates a RouletteHandler.
func NewRouletteHandler(d *Deps) *RouletteHandler {
	cfg := d.Config.Games.Roulette
	return &RouletteHandler{
		Deps:   d,
		wheel:  roulette.NewWheel(d.RNG, cfg.HighStake, cfg.WinChance),
		tables: game.NewSessions[*roulette.Table](d.Config.Games.SessionTTL),
	}
}

// HandleRoulette handles /roul [amount]. The stake defaults to the minimum.
func (h *RouletteHandler) HandleRoulette(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	stake, err := parseStake(c)
	switch {
	case errors.Is(err, errMissingStake):
		stake = roulette.MinStake
	case err != nil:
		return fail(c, err)
	}
	stake = decimal.Max(stake, roulette.MinStake)
	user, err := h.ensureUser(ctx, sender)
	if err != nil {
		return fail(c, err)
	}

	t := roulette.NewTable(stake)
	h.tables.Put(keyOf(c), t)
	msg, err := h.send(c, roulette.FormatPanel(t, user.Balance, ""), roulette.BuildPanel(t, sender.ID))
	if err != nil {
		return err
	}
	t.MessageID = msg.ID
	return nil
}

// Callback handles roulette buttons.
func (h *RouletteHandler) Callback(c tele.Context, d callback.Data) error {
	if !owner(c, d) {
		return notYours(c)
	}
	ctx := context.Background()
	sender := c.Sender()
	if err := h.Locks.Lock(ctx, sender.ID); err != nil {
		return fail(c, err)
	}
	defer h.Locks.Unlock(sender.ID)

	key := keyOf(c)
	if d.Action == roulette.ActCancel {
		h.tables.Delete(key)
		_ = c.Respond()
		return h.edit(c, "🎰 Roulette closed.")
	}
	t, ok := h.tables.Get(key)
	if !ok {
		return fail(c, game.ErrNoSession)
	}

	result := ""
	switch d.Action {
	case roulette.ActNumbers:
		t.Numbers = true
	case roulette.ActBack:
		t.Numbers = false
	case roulette.ActPlus:
		t.Step(1)
		if hi := h.limits(rouletteCmd).MaxBet; hi.IsPositive() {
			t.Stake = money.Clamp(t.Stake, roulette.MinStake, hi)
		}
	case roulette.ActMinus:
		t.Step(-1)
	case roulette.ActBet:
		value := d.Arg(1)
		if value == "-" {
			value = ""
		}
		b, err := roulette.ParseBet(roulette.Kind(d.Arg(0)), value)
		if err != nil {
			return badCallback(c, d)
		}
		t.Bet = &b
		t.Numbers = false
	case roulette.ActStart:
		text, err := h.spin(ctx, c, t)
		if err != nil {
			return fail(c, err)
		}
		result = text
	default:
		return badCallback(c, d)
	}

	_ = c.Respond()
	return h.edit(c, roulette.FormatPanel(t, h.balance(ctx, sender.ID), result), roulette.BuildPanel(t, sender.ID))
}

// spin takes the stake and settles one spin. The caller holds the lock.
func (h *RouletteHandler) spin(ctx context.Context, c tele.Context, t *roulette.Table) (string, error) {
	sender := c.Sender()
	if t.Bet == nil {
		return "", ruleErr(errors.New("place a bet first"))
	}
	if err := h.limits(rouletteCmd).ValidateBet(t.Stake); err != nil {
		return "", err
	}
	if h.onCooldown(ctx, sender.ID, rouletteCmd) {
		return "", ruleErr(errors.New("please wait a moment before spinning again"))
	}
	if _, err := h.Accounts.PlaceBet(ctx, sender.ID, rouletteCmd, t.Stake); err != nil {
		return "", err
	}
	r := h.wheel.Settle(*t.Bet, t.Stake)
	if r.Won {
		h.payout(ctx, sender.ID, rouletteCmd, r.Winnings)
	}
	h.settled(rouletteCmd, r.Won)
	log.Info().
		Int64("user_id", sender.ID).
		Str("bet", t.Bet.Label()).
		Str("stake", t.Stake.String()).
		Int("pocket", r.Pocket).
		Bool("won", r.Won).
		Msg("Roulette spun")
	return roulette.FormatResult(r), nil
}

// Sweep drops idle panels. No stake is held between spins.
func (h *RouletteHandler) Sweep(context.Context, retry.Sender) {
	h.tables.Sweep()
}
