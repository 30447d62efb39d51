// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/config"
	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/game/match"
	"github.com/goblinua/medinispx/internal/metrics"
	"github.com/goblinua/medinispx/internal/model"
	"github.com/goblinua/medinispx/internal/pkg/cache"
	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/lock"
	"github.com/goblinua/medinispx/internal/pkg/money"
	"github.com/goblinua/medinispx/internal/pkg/retry"
	"github.com/goblinua/medinispx/internal/service"
)

// Deps are the services shared by every handler.
type Deps struct {
	Config   *config.Config
	Accounts *service.AccountService
	// Payments is nil when deposits and withdrawals are disabled.
	Payments *service.PaymentService
	Ranking  *service.RankingService
	Prices   service.PriceSource
	Registry *game.Registry
	Locks    *lock.UserLock
	Cache    cache.Store
	Metrics  *metrics.Metrics
	Retry    retry.Policy
	RNG      game.RNG
	// Bot sends and edits messages.
	Bot      retry.Sender
}

// Sweeper is implemented by handlers holding sessions that can go idle.
type Sweeper interface {
	Sweep(ctx context.Context, s retry.Sender)
}

func keyOf(c tele.Context) game.Key {
	return game.Key{ChatID: c.Chat().ID, UserID: c.Sender().ID}
}

// displayName is how a user is addressed in game messages.
func displayName(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return strconv.FormatInt(u.ID, 10)
}

func player(u *tele.User) match.Player {
	return match.Player{ID: u.ID, Name: displayName(u)}
}

// ensureUser registers the sender on first contact and refreshes the
// cached username.
func (d *Deps) ensureUser(ctx context.Context, u *tele.User) (*model.User, error) {
	user, created, err := d.Accounts.EnsureUser(ctx, u.ID, u.Username)
	if err != nil {
		log.Error().Err(err).Int64("user_id", u.ID).Msg("Failed to ensure user")
		return nil, err
	}
	if created {
		log.Info().Int64("user_id", u.ID).Str("username", u.Username).Msg("User registered")
	}
	return user, nil
}

// limits returns the registered stake limits for a command.
func (d *Deps) limits(cmd string) game.Limits {
	if g, ok := d.Registry.Get(cmd); ok {
		return g.Limits()
	}
	return game.Limits{}
}

// onCooldown reports whether the user played cmd too recently, and starts
// the cooldown otherwise. Cache failures never block play.
func (d *Deps) onCooldown(ctx context.Context, userID int64, cmd string) bool {
	ttl := d.limits(cmd).Cooldown
	if ttl <= 0 || d.Cache == nil {
		return false
	}
	key := fmt.Sprintf("cooldown:%s:%d", cmd, userID)
	ok, err := d.Cache.SetNX(ctx, key, "1", ttl)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cooldown check failed")
		return false
	}
	return !ok
}

// checkStake validates a stake for cmd and that the user can cover it.
func (d *Deps) checkStake(ctx context.Context, userID int64, cmd string, stake decimal.Decimal) error {
	if err := d.limits(cmd).ValidateBet(stake); err != nil {
		return err
	}
	balance, err := d.Accounts.GetBalance(ctx, userID)
	if err != nil {
		return err
	}
	if balance.LessThan(stake) {
		return service.ErrInsufficientBalance
	}
	return nil
}

// parseStake reads the first command argument as a stake.
func parseStake(c tele.Context) (decimal.Decimal, error) {
	args := c.Args()
	if len(args) < 1 {
		return decimal.Zero, errMissingStake
	}
	return money.Parse(args[0])
}

var errMissingStake = errors.New("missing stake")

// userMessage maps an error to what the user is told. known is false for
// errors the user cannot act on.
func userMessage(err error) (msg string, known bool) {
	var be *betError
	switch {
	case errors.As(err, &be):
		return "❌ " + be.Error(), true
	case errors.Is(err, service.ErrInsufficientBalance):
		return "❌ Insufficient balance.", true
	case errors.Is(err, game.ErrBetTooLow), errors.Is(err, game.ErrBetTooHigh), errors.Is(err, game.ErrInvalidBet):
		return "❌ " + err.Error(), true
	case errors.Is(err, money.ErrInvalidAmount), errors.Is(err, money.ErrNonPositive), errors.Is(err, service.ErrInvalidAmount):
		return "❌ Please enter a valid amount.", true
	case errors.Is(err, game.ErrAlreadyInGame):
		return "⚠️ You are already in a game. Finish it first.", true
	case errors.Is(err, game.ErrNoSession):
		return "⚠️ This game is no longer active.", true
	case errors.Is(err, game.ErrNotYourGame), errors.Is(err, match.ErrNotChallenged), errors.Is(err, match.ErrNotPlayer):
		return "⛔ " + err.Error(), true
	case errors.Is(err, service.ErrUserNotFound):
		return "❌ User not found. They need to /start the bot first.", true
	case errors.Is(err, lock.ErrLockTimeout):
		return "⏳ Your previous action is still being processed.", true
	case errors.Is(err, service.ErrUnsupportedCurrency):
		return "❌ Unsupported currency.", true
	case errors.Is(err, service.ErrInvalidAddress):
		return "❌ Invalid withdrawal address.", true
	}
	for _, known := range []error{
		match.ErrStaleRound, match.ErrNotYourTurn, match.ErrMatchOver, match.ErrRollInProgress,
		match.ErrSelfChallenge, match.ErrChallengeNotFound, match.ErrInvalidPoints, match.ErrInvalidMode,
	} {
		if errors.Is(err, known) {
			return "⚠️ " + known.Error(), true
		}
	}
	return "❌ Something went wrong, please try again later.", false
}

// betError carries a game rule violation worth showing verbatim.
type betError struct{ err error }

func (e *betError) Error() string { return e.err.Error() }
func (e *betError) Unwrap() error { return e.err }

func ruleErr(err error) error {
	if err == nil {
		return nil
	}
	return &betError{err: err}
}

// fail replies to a message or answers a callback with the mapped error,
// logging anything unexpected.
func fail(c tele.Context, err error) error {
	msg, known := userMessage(err)
	if !known {
		ev := log.Error().Err(err)
		if s := c.Sender(); s != nil {
			ev = ev.Int64("user_id", s.ID)
		}
		ev.Msg("Handler failed")
	}
	if c.Callback() != nil {
		return alert(c, msg)
	}
	return c.Reply(msg)
}

// alert answers a callback with a popup.
func alert(c tele.Context, text string) error {
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
}

// badCallback answers a malformed or unknown button press.
func badCallback(c tele.Context, d callback.Data) error {
	log.Warn().Str("game", d.Game).Str("action", d.Action).Strs("args", d.Args).Msg("Malformed callback")
	return alert(c, "⚠️ This button is no longer valid.")
}

// owner checks that the button's trailing user id is the presser.
func owner(c tele.Context, d callback.Data) bool {
	id, err := d.Int64(len(d.Args) - 1)
	return err == nil && id == c.Sender().ID
}

func notYours(c tele.Context) error {
	return alert(c, "⛔ "+game.ErrNotYourGame.Error())
}

// send delivers a message to the update's chat with retries.
func (d *Deps) send(c tele.Context, what any, opts ...any) (*tele.Message, error) {
	return d.Retry.Send(context.Background(), d.Bot, c.Chat(), what, opts...)
}

// edit updates the callback's message with retries.
func (d *Deps) edit(c tele.Context, what any, opts ...any) error {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	_, err := d.Retry.Edit(context.Background(), d.Bot, msg, what, opts...)
	return err
}

// throw sends a dice animation and returns its value. A timed-out throw is
// not resent, since a second die would show a different value.
func (d *Deps) throw(c tele.Context, emoji string) (int, error) {
	msg, err := d.Retry.WithFinalTimeouts().Send(context.Background(), d.Bot, c.Chat(), &tele.Dice{Type: tele.DiceType(emoji)})
	if err != nil {
		return 0, err
	}
	if msg == nil || msg.Dice == nil {
		return 0, errors.New("dice message without value")
	}
	return msg.Dice.Value, nil
}

// wait lets a dice animation finish before the result is announced.
func (d *Deps) wait() {
	if d.Config != nil && d.Config.Games.AnimationDelay > 0 {
		time.Sleep(d.Config.Games.AnimationDelay)
	}
}

// payout credits winnings, logging a failure loudly since the stake is gone.
func (d *Deps) payout(ctx context.Context, userID int64, cmd string, amount decimal.Decimal) decimal.Decimal {
	user, err := d.Accounts.Payout(ctx, userID, cmd, amount)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Str("game", cmd).Str("amount", amount.String()).Msg("Failed to credit winnings")
		return d.balance(ctx, userID)
	}
	return user.Balance
}

// refund returns a stake after a failed round.
func (d *Deps) refund(ctx context.Context, userID int64, cmd string, amount decimal.Decimal) {
	if _, err := d.Accounts.Refund(ctx, userID, cmd, amount); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Str("game", cmd).Str("amount", amount.String()).Msg("Failed to refund stake")
	}
}

// balance is a best-effort balance for display.
func (d *Deps) balance(ctx context.Context, userID int64) decimal.Decimal {
	b, err := d.Accounts.GetBalance(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to read balance")
		return decimal.Zero
	}
	return b
}

// settled records a finished round.
func (d *Deps) settled(cmd string, won bool) {
	if won {
		d.Metrics.Settled(cmd, "win")
		return
	}
	d.Metrics.Settled(cmd, "loss")
}

// Notifier delivers payment notices as private messages.
type Notifier struct {
	bot    retry.Sender
	policy retry.Policy
}

// NewNotifier creates a Notifier sending through bot.
func NewNotifier(bot retry.Sender, policy retry.Policy) *Notifier {
	return &Notifier{bot: bot, policy: policy}
}

// Notify sends text to the user's private chat.
func (n *Notifier) Notify(ctx context.Context, userID int64, text string) error {
	_, err := n.policy.Send(ctx, n.bot, &tele.User{ID: userID}, text)
	return err
}
