package handler

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/game/slot"
	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/money"
	"github.com/goblinua/medinispx/internal/pkg/retry"
)

const slotsCmd = "slots"

type slotPanel struct {
	bet decimal.Decimal
}

// SlotsHandler runs the 🎰 slot machine in private chats.
type SlotsHandler struct {
	*Deps
	panels *game.Sessions[*slotPanel]
}

// NewSlotsHandler creates a SlotsHandler.
func NewSlotsHandler(d *Deps) *SlotsHandler {
	return &SlotsHandler{
		Deps:   d,
		panels: game.NewSessions[*slotPanel](d.Config.Games.SessionTTL),
	}
}

// HandleSlots handles /slots.
func (h *SlotsHandler) HandleSlots(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if c.Chat().Type != tele.ChatPrivate {
		return c.Reply("🎰 Slots are only available in a private chat with the bot.")
	}
	if _, err := h.ensureUser(context.Background(), sender); err != nil {
		return fail(c, err)
	}
	p := &slotPanel{bet: money.Clamp(decimal.NewFromInt(1), slot.MinBet, slot.MaxBet)}
	h.panels.Put(keyOf(c), p)
	_, err := h.send(c, slot.FormatPanel(p.bet), slot.BuildPanel(sender.ID, p.bet))
	return err
}

// Callback handles slot buttons.
func (h *SlotsHandler) Callback(c tele.Context, d callback.Data) error {
	if !owner(c, d) {
		return notYours(c)
	}
	ctx := context.Background()
	sender := c.Sender()
	if err := h.Locks.Lock(ctx, sender.ID); err != nil {
		return fail(c, err)
	}
	defer h.Locks.Unlock(sender.ID)

	p, ok := h.panels.Get(keyOf(c))
	if !ok {
		return fail(c, game.ErrNoSession)
	}

	switch d.Action {
	case slot.ActCombos:
		_ = c.Respond()
		return h.edit(c, slot.FormatCombos(), slot.BuildBack(sender.ID))
	case slot.ActBack:
	case slot.ActMinus, slot.ActPlus, slot.ActMin, slot.ActDouble, slot.ActMax:
		p.bet = slot.Adjust(p.bet, d.Action)
	case slot.ActSpin:
		return h.spin(ctx, c, p)
	default:
		return badCallback(c, d)
	}
	_ = c.Respond()
	return h.edit(c, slot.FormatPanel(p.bet), slot.BuildPanel(sender.ID, p.bet))
}

// spin takes the stake, rolls Telegram's slot machine and pays the combo.
// The caller holds the lock.
func (h *SlotsHandler) spin(ctx context.Context, c tele.Context, p *slotPanel) error {
	sender := c.Sender()
	bet := p.bet
	if h.onCooldown(ctx, sender.ID, slotsCmd) {
		return alert(c, "⏰ Please wait a moment before spinning again.")
	}
	if err := h.limits(slotsCmd).ValidateBet(bet); err != nil {
		return fail(c, err)
	}
	if _, err := h.Accounts.PlaceBet(ctx, sender.ID, slotsCmd, bet); err != nil {
		return fail(c, err)
	}
	_ = c.Respond()

	value, err := h.throw(c, string(tele.Slot.Type))
	if err != nil {
		h.refund(ctx, sender.ID, slotsCmd, bet)
		return err
	}
	o, err := slot.Evaluate(value, bet)
	if err != nil {
		h.refund(ctx, sender.ID, slotsCmd, bet)
		return err
	}
	h.wait()

	if o.Won() {
		h.payout(ctx, sender.ID, slotsCmd, o.Winnings)
	}
	h.settled(slotsCmd, o.Won())
	log.Info().
		Int64("user_id", sender.ID).
		Str("bet", bet.String()).
		Int("value", value).
		Str("winnings", o.Winnings.String()).
		Msg("Slots spun")

	text := slot.FormatOutcome(o, bet) + "\nBalance: " + money.USD(h.balance(ctx, sender.ID))
	_, err = h.send(c, text, slot.BuildPanel(sender.ID, p.bet))
	return err
}

// Sweep drops idle panels. No stake is held between spins.
func (h *SlotsHandler) Sweep(context.Context, retry.Sender) {
	h.panels.Sweep()
}
