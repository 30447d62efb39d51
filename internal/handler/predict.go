package handler

import (
	"context"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/game/predict"
	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/retry"
)

const predictCmd = "predict"

// PredictHandler runs the outcome prediction panel.
type PredictHandler struct {
	*Deps
	panels *game.Sessions[*predict.Panel]
}

// NewPredictHandler creates a PredictHandler.
func NewPredictHandler(d *Deps) *PredictHandler {
	return &PredictHandler{
		Deps:   d,
		panels: game.NewSessions[*predict.Panel](d.Config.Games.SessionTTL),
	}
}

// HandlePredict handles /predict.
func (h *PredictHandler) HandlePredict(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	user, err := h.ensureUser(context.Background(), sender)
	if err != nil {
		return fail(c, err)
	}
	p := predict.NewPanel()
	h.panels.Put(keyOf(c), p)
	msg, err := h.send(c, predict.FormatPanel(p, user.Balance), predict.BuildPanel(p, sender.ID))
	if err != nil {
		return err
	}
	p.MessageID = msg.ID
	return nil
}

// Callback handles predict buttons.
func (h *PredictHandler) Callback(c tele.Context, d callback.Data) error {
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
	if d.Action == predict.ActCancel {
		h.panels.Delete(key)
		_ = c.Respond()
		return h.edit(c, "🔮 Prediction closed.")
	}
	p, ok := h.panels.Get(key)
	if !ok {
		return fail(c, game.ErrNoSession)
	}

	switch d.Action {
	case predict.ActNoop:
		return c.Respond()
	case predict.ActPick:
		if err := p.Predict(d.Arg(0)); err != nil {
			return fail(c, ruleErr(err))
		}
	case predict.ActHalf:
		p.Half()
	case predict.ActDouble:
		p.Double()
	case predict.ActLeft:
		p.Rotate(-1)
	case predict.ActRight:
		p.Rotate(1)
	case predict.ActStart:
		return h.play(ctx, c, p)
	default:
		return badCallback(c, d)
	}
	_ = c.Respond()
	return h.edit(c, predict.FormatPanel(p, h.balance(ctx, sender.ID)), predict.BuildPanel(p, sender.ID))
}

// play takes the stake, throws the dice and settles the prediction. The
// caller holds the lock.
func (h *PredictHandler) play(ctx context.Context, c tele.Context, p *predict.Panel) error {
	sender := c.Sender()
	if p.Prediction == "" {
		return fail(c, ruleErr(predict.ErrNoPrediction))
	}
	if err := h.limits(predictCmd).ValidateBet(p.Bet); err != nil {
		return fail(c, err)
	}
	if h.onCooldown(ctx, sender.ID, predictCmd) {
		return alert(c, "⏰ Please wait a moment before playing again.")
	}
	if _, err := h.Accounts.PlaceBet(ctx, sender.ID, predictCmd, p.Bet); err != nil {
		return fail(c, err)
	}
	_ = c.Respond()

	value, err := h.throw(c, p.Mode.Emoji())
	if err != nil {
		h.refund(ctx, sender.ID, predictCmd, p.Bet)
		return err
	}
	h.wait()

	r, err := p.Settle(value)
	if err != nil {
		h.refund(ctx, sender.ID, predictCmd, p.Bet)
		return err
	}
	if r.Won {
		h.payout(ctx, sender.ID, predictCmd, r.Winnings)
	}
	h.settled(predictCmd, r.Won)
	p.LastResult = predict.FormatResult(r)
	log.Info().
		Int64("user_id", sender.ID).
		Str("mode", string(p.Mode)).
		Str("prediction", r.Prediction).
		Str("outcome", r.Outcome).
		Bool("won", r.Won).
		Msg("Prediction settled")

	msg, err := h.send(c, predict.FormatPanel(p, h.balance(ctx, sender.ID)), predict.BuildPanel(p, sender.ID))
	if err != nil {
		return err
	}
	p.MessageID = msg.ID
	return nil
}

// Sweep drops idle panels. No stake is held between throws.
func (h *PredictHandler) Sweep(context.Context, retry.Sender) {
	h.panels.Sweep()
}
