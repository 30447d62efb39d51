package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/game/match"
	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/money"
	"github.com/goblinua/medinispx/internal/pkg/retry"
)

// MatchHandler runs the first-to-N dice games: setup, challenges, rolls
// and settlement.
type MatchHandler struct {
	*Deps
	manager *match.Manager
	setups  *game.Sessions[*match.Setup]
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(d *Deps, manager *match.Manager) *MatchHandler {
	return &MatchHandler{
		Deps:    d,
		manager: manager,
		setups:  game.NewSessions[*match.Setup](d.Config.Games.SessionTTL),
	}
}

func (h *MatchHandler) multiplier() decimal.Decimal {
	return h.Config.Games.Match.WinMultiplier
}

// Command returns the handler for /<kind> <amount>.
func (h *MatchHandler) Command(k match.Kind) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := context.Background()
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		prof, _ := match.ProfileFor(k)

		stake, err := parseStake(c)
		if errors.Is(err, errMissingStake) {
			return c.Reply(fmt.Sprintf("%s Usage: /%s <amount>\nExample: /%s 5", prof.Emoji, k, k))
		}
		if err != nil {
			return fail(c, err)
		}
		if h.onCooldown(ctx, sender.ID, string(k)) {
			return c.Reply("⏰ Please wait a moment before starting another game.")
		}
		if _, err := h.ensureUser(ctx, sender); err != nil {
			return fail(c, err)
		}
		if err := h.checkStake(ctx, sender.ID, string(k), stake); err != nil {
			return fail(c, err)
		}
		if h.manager.Busy(c.Chat().ID, sender.ID) {
			return fail(c, game.ErrAlreadyInGame)
		}

		setup := &match.Setup{Settings: match.Settings{Kind: k, Stake: stake}}
		h.setups.Put(keyOf(c), setup)
		msg, err := h.send(c, fmt.Sprintf("%s %s\n\nBet: %s\nChoose the game mode:", prof.Emoji, prof.Name, money.USD(stake)),
			match.ModeKeyboard(k, sender.ID))
		if err != nil {
			return err
		}
		setup.MessageID = msg.ID
		return nil
	}
}

// Callback handles every match button. d.Game is the match kind.
func (h *MatchHandler) Callback(c tele.Context, d callback.Data) error {
	k, err := match.ParseKind(d.Game)
	if err != nil {
		return badCallback(c, d)
	}
	switch d.Action {
	case match.ActAccept:
		return h.accept(c, d.Arg(0))
	case match.ActDecline:
		return h.decline(c, d.Arg(0))
	case match.ActRoll:
		round, err := d.Int(0)
		if err != nil {
			return badCallback(c, d)
		}
		return h.roll(c, round)
	case match.ActAgain, match.ActDouble:
		return h.rematch(c, d.Action == match.ActDouble)
	}

	if !owner(c, d) {
		return notYours(c)
	}
	key := keyOf(c)
	if err := h.Locks.Lock(context.Background(), c.Sender().ID); err != nil {
		return fail(c, err)
	}
	defer h.Locks.Unlock(c.Sender().ID)

	if d.Action == match.ActCancel {
		h.setups.Delete(key)
		_ = c.Respond()
		return h.edit(c, "❌ Game cancelled.")
	}
	setup, ok := h.setups.Get(key)
	if !ok || setup.Kind != k {
		return fail(c, game.ErrNoSession)
	}

	switch d.Action {
	case match.ActGuide:
		_ = c.Respond()
		_, err := h.send(c, match.ModeGuide(k))
		return err
	case match.ActMode:
		mode, err := match.ParseMode(d.Arg(0))
		if err != nil {
			return badCallback(c, d)
		}
		setup.Mode = mode
		_ = c.Respond()
		return h.edit(c, "🏆 Choose the points to win:", match.PointsKeyboard(k, c.Sender().ID))
	case match.ActPoints:
		points, err := d.Int(0)
		if err != nil || points < 1 || points > match.MaxPoints {
			return badCallback(c, d)
		}
		setup.Points = points
		_ = c.Respond()
		return h.edit(c, match.FormatConfirm(setup.Settings, h.multiplier().StringFixed(2)), match.ConfirmKeyboard(k, c.Sender().ID))
	case match.ActConfirm:
		if err := setup.Validate(); err != nil {
			return fail(c, err)
		}
		_ = c.Respond()
		return h.edit(c, "Choose your opponent:", match.OpponentKeyboard(k, c.Sender().ID))
	case match.ActPvP:
		setup.AwaitingUsername = true
		_ = c.Respond()
		return h.edit(c, "👤 Send the @username of the player you want to challenge.")
	case match.ActBot:
		if err := setup.Validate(); err != nil {
			return fail(c, err)
		}
		h.setups.Delete(key)
		_ = c.Respond()
		return h.startHouse(c, setup.Settings)
	}
	return badCallback(c, d)
}

// HandleUsername consumes an "@username" sent after "Challenge a Player".
// handled is false when the text was not meant for a match setup.
func (h *MatchHandler) HandleUsername(c tele.Context) (handled bool, err error) {
	sender := c.Sender()
	if sender == nil || c.Chat() == nil {
		return false, nil
	}
	key := keyOf(c)
	setup, ok := h.setups.Get(key)
	if !ok || !setup.AwaitingUsername {
		return false, nil
	}
	text := strings.TrimSpace(c.Text())
	if !strings.HasPrefix(text, "@") || strings.ContainsAny(text, " \n") {
		return true, c.Reply("Please send a single @username, e.g. @alice.")
	}

	ctx := context.Background()
	target, err := h.Accounts.FindByUsername(ctx, text)
	if err != nil {
		return true, fail(c, err)
	}
	opponent := match.Player{ID: target.TelegramID, Name: "@" + target.Username}
	if err := h.challenge(c, player(sender), opponent, setup.Settings); err != nil {
		return true, fail(c, err)
	}
	h.setups.Delete(key)
	return true, nil
}

// challenge checks both balances and posts the invitation.
func (h *MatchHandler) challenge(c tele.Context, from, to match.Player, s match.Settings) error {
	ctx := context.Background()
	if from.ID == to.ID {
		return match.ErrSelfChallenge
	}
	if err := h.checkStake(ctx, from.ID, string(s.Kind), s.Stake); err != nil {
		return err
	}
	balance, err := h.Accounts.GetBalance(ctx, to.ID)
	if err != nil {
		return err
	}
	if balance.LessThan(s.Stake) {
		return ruleErr(fmt.Errorf("%s doesn't have enough balance for this bet", to.Name))
	}
	if h.manager.Busy(c.Chat().ID, to.ID) {
		return ruleErr(fmt.Errorf("%s is already in a game", to.Name))
	}

	ch, err := h.manager.Challenge(c.Chat().ID, from, to, s)
	if err != nil {
		return err
	}
	msg, err := h.send(c, match.FormatChallenge(ch), match.ChallengeKeyboard(s.Kind, ch.ID))
	if err != nil {
		_, _ = h.manager.Decline(ch.ID, from.ID)
		return err
	}
	h.manager.SetChallengeMessage(ch.ID, msg.ID)
	log.Info().
		Str("challenge_id", ch.ID).
		Int64("challenger", from.ID).
		Int64("target", to.ID).
		Str("game", string(s.Kind)).
		Str("stake", s.Stake.String()).
		Msg("Match challenge created")
	return nil
}

func (h *MatchHandler) accept(c tele.Context, id string) error {
	ctx := context.Background()
	ch, err := h.manager.Accept(id, c.Sender().ID)
	if err != nil {
		return fail(c, err)
	}
	// Refreshes the target's cached username.
	if _, err := h.ensureUser(ctx, c.Sender()); err != nil {
		return fail(c, err)
	}

	unlock, err := h.Locks.LockPair(ctx, ch.Challenger.ID, ch.Target.ID)
	if err != nil {
		return fail(c, err)
	}
	defer unlock()

	g := string(ch.Settings.Kind)
	if err := h.Accounts.PlaceMatchBets(ctx, ch.Challenger.ID, ch.Target.ID, g, ch.Settings.Stake); err != nil {
		_ = h.edit(c, "❌ The challenge was cancelled: one of the players can't cover the bet.")
		return fail(c, err)
	}
	m, err := h.manager.Start(ch.ChatID, ch.Challenger, ch.Target, ch.Settings)
	if err != nil {
		h.refund(ctx, ch.Challenger.ID, g, ch.Settings.Stake)
		h.refund(ctx, ch.Target.ID, g, ch.Settings.Stake)
		_ = h.edit(c, "❌ The challenge was cancelled.")
		return fail(c, err)
	}
	h.Metrics.SessionStarted(g)
	_ = c.Respond()
	return h.edit(c, "✅ Challenge accepted!\n\n"+match.FormatTurn(m), match.RollKeyboard(m.Settings.Kind, m.Round()))
}

func (h *MatchHandler) decline(c tele.Context, id string) error {
	ch, err := h.manager.Decline(id, c.Sender().ID)
	if err != nil {
		return fail(c, err)
	}
	log.Info().Str("challenge_id", ch.ID).Int64("user_id", c.Sender().ID).Msg("Match challenge declined")
	_ = c.Respond()
	return h.edit(c, fmt.Sprintf("❌ %s cancelled the challenge.", displayName(c.Sender())))
}

// startHouse takes the stake and starts a match against the bot. The
// caller holds the user's lock.
func (h *MatchHandler) startHouse(c tele.Context, s match.Settings) error {
	ctx := context.Background()
	sender := c.Sender()
	if h.manager.Busy(c.Chat().ID, sender.ID) {
		return fail(c, game.ErrAlreadyInGame)
	}
	g := string(s.Kind)
	if _, err := h.Accounts.PlaceBet(ctx, sender.ID, g, s.Stake); err != nil {
		return fail(c, err)
	}
	m, err := h.manager.Start(c.Chat().ID, player(sender), match.Player{ID: match.House, Name: "Bot"}, s)
	if err != nil {
		h.refund(ctx, sender.ID, g, s.Stake)
		return fail(c, err)
	}
	h.Metrics.SessionStarted(g)
	_, err = h.send(c, "🤖 Match against the bot!\n\n"+match.FormatTurn(m), match.RollKeyboard(s.Kind, m.Round()))
	return err
}

func (h *MatchHandler) roll(c tele.Context, round int) error {
	sender := c.Sender()
	m, ok := h.manager.Get(c.Chat().ID, sender.ID)
	if !ok {
		return fail(c, game.ErrNoSession)
	}
	if _, err := m.BeginRoll(sender.ID, round); err != nil {
		return fail(c, err)
	}
	_ = c.Respond()

	prof, _ := match.ProfileFor(m.Settings.Kind)
	value, err := h.throw(c, prof.Emoji)
	if err != nil {
		m.AbortRoll()
		return err
	}
	h.wait()
	step, err := m.CompleteRoll(value, h.manager.Now())
	if err != nil {
		return err
	}
	return h.advance(c, m, step)
}

// advance reports a recorded roll and prompts the next roll, rolling for
// the bot when it is on turn.
func (h *MatchHandler) advance(c tele.Context, m *match.Match, step match.Step) error {
	for {
		if step.Round != nil {
			if _, err := h.send(c, match.FormatRound(m, step.Round)); err != nil {
				log.Warn().Err(err).Str("match_id", m.ID).Msg("Failed to send round result")
			}
		}
		if step.Kind == match.MatchOver {
			return h.finish(c, m)
		}
		if step.Next == 1 && m.VsHouse() {
			next, err := h.houseRoll(c, m)
			if err != nil {
				return err
			}
			step = next
			continue
		}
		_, err := h.send(c, match.FormatTurn(m), match.RollKeyboard(m.Settings.Kind, m.Round()))
		return err
	}
}

func (h *MatchHandler) houseRoll(c tele.Context, m *match.Match) (match.Step, error) {
	if err := m.BeginHouseRoll(); err != nil {
		return match.Step{}, err
	}
	prof, _ := match.ProfileFor(m.Settings.Kind)
	value, err := h.throw(c, prof.Emoji)
	if err != nil {
		m.AbortRoll()
		return match.Step{}, err
	}
	h.wait()
	return m.CompleteRoll(value, h.manager.Now())
}

// finish pays the winner and offers a rematch.
func (h *MatchHandler) finish(c tele.Context, m *match.Match) error {
	ctx := context.Background()
	g := string(m.Settings.Kind)
	if !h.manager.Finish(m) {
		log.Warn().Str("match_id", m.ID).Str("game", g).Msg("Match finished after being swept, no payout")
		return nil
	}
	h.Metrics.SessionEnded(g)

	_, winner := m.Finished()
	w := m.Players[winner]
	prize := match.Prize(m.Settings.Stake, h.multiplier())
	if !w.IsHouse() {
		if err := h.Locks.Lock(ctx, w.ID); err == nil {
			h.payout(ctx, w.ID, g, prize)
			h.Locks.Unlock(w.ID)
		} else {
			log.Error().Err(err).Int64("user_id", w.ID).Str("match_id", m.ID).Msg("Failed to lock winner for payout")
		}
	}
	h.settled(g, !w.IsHouse())
	log.Info().
		Str("match_id", m.ID).
		Str("game", g).
		Int64("winner", w.ID).
		Str("stake", m.Settings.Stake.String()).
		Msg("Match finished")

	_, err := h.send(c, match.FormatWinner(m, winner, money.USD(prize)), match.FinishedKeyboard(m.Settings.Kind, m.Players[0].ID))
	return err
}

// rematch replays the presser's last match, optionally at double stake.
func (h *MatchHandler) rematch(c tele.Context, double bool) error {
	sender := c.Sender()
	r, ok := h.manager.Last(c.Chat().ID, sender.ID)
	if !ok {
		return fail(c, game.ErrNoSession)
	}
	if double {
		r = r.Doubled()
	}
	if h.manager.Busy(c.Chat().ID, sender.ID) {
		return fail(c, game.ErrAlreadyInGame)
	}
	if r.Opponent.IsHouse() {
		if err := h.limits(string(r.Settings.Kind)).ValidateBet(r.Settings.Stake); err != nil {
			return fail(c, err)
		}
		if err := h.Locks.Lock(context.Background(), sender.ID); err != nil {
			return fail(c, err)
		}
		defer h.Locks.Unlock(sender.ID)
		_ = c.Respond()
		return h.startHouse(c, r.Settings)
	}
	if err := h.challenge(c, player(sender), r.Opponent, r.Settings); err != nil {
		return fail(c, err)
	}
	return c.Respond()
}

// Sweep refunds idle matches and closes expired challenges and setups.
func (h *MatchHandler) Sweep(ctx context.Context, s retry.Sender) {
	h.setups.Sweep()
	idle, expired := h.manager.Sweep()
	for _, m := range idle {
		g := string(m.Settings.Kind)
		for _, p := range m.Players {
			if p.IsHouse() {
				continue
			}
			if err := h.Locks.Lock(ctx, p.ID); err != nil {
				log.Error().Err(err).Int64("user_id", p.ID).Str("match_id", m.ID).Msg("Failed to lock player for refund")
				continue
			}
			h.refund(ctx, p.ID, g, m.Settings.Stake)
			h.Locks.Unlock(p.ID)
		}
		h.Metrics.SessionEnded(g)
		log.Info().Str("match_id", m.ID).Str("game", g).Msg("Idle match refunded")
		if _, err := h.Retry.Send(ctx, s, &tele.Chat{ID: m.ChatID}, "⌛ The match timed out. Stakes have been refunded."); err != nil {
			log.Warn().Err(err).Str("match_id", m.ID).Msg("Failed to announce expired match")
		}
	}
	for _, ch := range expired {
		if ch.MessageID == 0 {
			continue
		}
		msg := &tele.Message{ID: ch.MessageID, Chat: &tele.Chat{ID: ch.ChatID}}
		if _, err := h.Retry.Edit(ctx, s, msg, "⌛ The challenge expired."); err != nil {
			log.Debug().Err(err).Str("challenge_id", ch.ID).Msg("Failed to close expired challenge")
		}
	}
}
