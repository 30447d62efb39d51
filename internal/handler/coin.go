package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/game/coin"
	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/retry"
)

const coinCmd = "coin"

// CoinHandler runs coin flips against the house.
type CoinHandler struct {
	*Deps
	flipper *coin.Flipper
	setups  *game.Sessions[*coin.Setup]
}

// NewCoinHandler creates a CoinHandler.
func NewCoinHandler(d *Deps) *CoinHandler {
	cfg := d.Config.Games.Coin
	return &CoinHandler{
		Deps:    d,
		flipper: coin.NewFlipper(d.RNG, cfg.WinChance, cfg.WinMultiplier),
		setups:  game.NewSessions[*coin.Setup](d.Config.Games.SessionTTL),
	}
}

// HandleCoin handles /coin <amount>.
func (h *CoinHandler) HandleCoin(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	stake, err := parseStake(c)
	if errors.Is(err, errMissingStake) {
		return c.Reply("🪙 Usage: /coin <amount>\nExample: /coin 5")
	}
	if err != nil {
		return fail(c, err)
	}
	if _, err := h.ensureUser(ctx, sender); err != nil {
		return fail(c, err)
	}
	if err := h.checkStake(ctx, sender.ID, coinCmd, stake); err != nil {
		return fail(c, err)
	}

	setup := &coin.Setup{Stake: stake}
	h.setups.Put(keyOf(c), setup)
	msg, err := h.send(c, coin.FormatStart(stake), coin.ChoiceKeyboard(sender.ID))
	if err != nil {
		return err
	}
	setup.MessageID = msg.ID
	return nil
}

// Callback handles coin buttons.
func (h *CoinHandler) Callback(c tele.Context, d callback.Data) error {
	if !owner(c, d) {
		return notYours(c)
	}
	key := keyOf(c)
	uid := c.Sender().ID
	if err := h.Locks.Lock(context.Background(), uid); err != nil {
		return fail(c, err)
	}
	defer h.Locks.Unlock(uid)

	if d.Action == coin.ActCancel {
		h.setups.Delete(key)
		_ = c.Respond()
		return h.edit(c, "❌ Game cancelled.")
	}
	setup, ok := h.setups.Get(key)
	if !ok {
		return fail(c, game.ErrNoSession)
	}

	switch d.Action {
	case coin.ActPick:
		side, err := coin.ParseSide(d.Arg(0))
		if err != nil {
			return badCallback(c, d)
		}
		setup.Choice = side
		_ = c.Respond()
		return h.edit(c, coin.FormatConfirm(setup, h.Config.Games.Coin.WinMultiplier), coin.ConfirmKeyboard(uid))
	case coin.ActConfirm:
		if setup.Choice == "" {
			return fail(c, ruleErr(coin.ErrInvalidSide))
		}
		_ = c.Respond()
		return h.edit(c, "Choose your opponent:", coin.OpponentKeyboard(uid))
	case coin.ActBot:
		if setup.Choice == "" {
			return fail(c, ruleErr(coin.ErrInvalidSide))
		}
		setup.Accepted = true
		_ = c.Respond()
		return h.edit(c, coin.FormatAccepted(displayName(c.Sender())), coin.FlipKeyboard(uid))
	case coin.ActFlip:
		if !setup.Accepted {
			return fail(c, game.ErrNoSession)
		}
		return h.flip(c, setup)
	case coin.ActAgain, coin.ActDouble:
		if setup.Choice == "" {
			return fail(c, game.ErrNoSession)
		}
		stake := setup.Stake
		if d.Action == coin.ActDouble {
			stake = stake.Mul(decimal.NewFromInt(2))
		}
		if err := h.checkStake(context.Background(), uid, coinCmd, stake); err != nil {
			return fail(c, err)
		}
		setup.Stake = stake
		setup.Accepted = true
		_ = c.Respond()
		_, err := h.send(c, coin.FormatAccepted(displayName(c.Sender())), coin.FlipKeyboard(uid))
		return err
	}
	return badCallback(c, d)
}

// flip runs with the user's lock held.
func (h *CoinHandler) flip(c tele.Context, setup *coin.Setup) error {
	ctx := context.Background()
	sender := c.Sender()
	if h.onCooldown(ctx, sender.ID, coinCmd) {
		return alert(c, "⏰ Please wait a moment before flipping again.")
	}
	user, err := h.Accounts.PlaceBet(ctx, sender.ID, coinCmd, setup.Stake)
	if err != nil {
		return fail(c, err)
	}
	setup.Accepted = false
	_ = c.Respond()

	r := h.flipper.Flip(setup.Choice, setup.Stake)
	h.sendSticker(c, r.Landed)

	balance := user.Balance
	if r.Won {
		balance = h.payout(ctx, sender.ID, coinCmd, r.Winnings)
	}
	h.settled(coinCmd, r.Won)
	log.Info().
		Int64("user_id", sender.ID).
		Str("stake", setup.Stake.String()).
		Str("choice", string(r.Choice)).
		Str("landed", string(r.Landed)).
		Bool("won", r.Won).
		Msg("Coin flipped")

	if err := h.edit(c, coin.FormatAccepted(displayName(sender))); err != nil {
		log.Debug().Err(err).Msg("Failed to clear flip button")
	}
	_, err = h.send(c, coin.FormatResult(displayName(sender), r, setup.Stake, balance), coin.FinishedKeyboard(sender.ID))
	return err
}

// sendSticker shows the landed face when stickers are configured.
func (h *CoinHandler) sendSticker(c tele.Context, landed coin.Side) {
	id := h.Config.Games.Coin.TailsSticker
	if landed == coin.Heads {
		id = h.Config.Games.Coin.HeadsSticker
	}
	if id == "" {
		return
	}
	if _, err := h.send(c, &tele.Sticker{File: tele.File{FileID: id}}); err != nil {
		log.Debug().Err(err).Msg("Failed to send coin sticker")
	}
}

// Sweep drops idle setups. No stake is held between flips.
func (h *CoinHandler) Sweep(context.Context, retry.Sender) {
	h.setups.Sweep()
}
