package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/pkg/callback"
	"github.com/goblinua/medinispx/internal/pkg/money"
	"github.com/goblinua/medinispx/internal/pkg/retry"
)

// PaymentCallbackGame is the callback prefix for deposit buttons.
const PaymentCallbackGame = "pay"

const actDeposit = "dep"

// AccountHandler handles account-related commands.
type AccountHandler struct {
	*Deps
	// withdrawing marks users asked for "<amount> <address>".
	withdrawing *game.Sessions[bool]
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(d *Deps) *AccountHandler {
	return &AccountHandler{
		Deps:        d,
		withdrawing: game.NewSessions[bool](d.Config.Games.SessionTTL),
	}
}

// HandleStart handles the /start command, registering the user.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	user, err := h.ensureUser(context.Background(), sender)
	if err != nil {
		return c.Reply("❌ Failed to create your account, please try again later.")
	}
	return c.Reply(fmt.Sprintf(
		"👋 Welcome, %s!\n\n"+
			"💰 Balance: %s\n\n"+
			"/balance - your balance\n"+
			"/deposit - add funds\n"+
			"/withdraw - cash out\n"+
			"/top - richest players\n"+
			"/help - all games",
		displayName(sender), money.USD(user.Balance),
	))
}

// HandleBalance handles /balance: USD, the payout currency equivalent and
// today's result.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	user, err := h.ensureUser(ctx, sender)
	if err != nil {
		return c.Reply("❌ Failed to get your balance, please try again later.")
	}

	msg := fmt.Sprintf("💰 Balance: %s", money.USD(user.Balance))
	if h.Prices != nil {
		symbol := h.Config.Payments.PayoutCurrency
		price, err := h.Prices.USDPrice(ctx, symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to price balance")
		} else if amount := equivalent(user.Balance, price); amount.IsPositive() {
			msg += fmt.Sprintf(" (≈ %s %s)", amount.String(), strings.ToUpper(symbol))
		}
	}
	if h.Ranking != nil {
		if today, err := h.Ranking.GetDailyResult(ctx, sender.ID); err == nil {
			sign := ""
			if today.IsPositive() {
				sign = "+"
			}
			msg += "\n📊 Today: " + sign + money.USD(today)
		}
	}
	return c.Reply(msg)
}

// HandleHelp lists every registered game.
func (h *AccountHandler) HandleHelp(c tele.Context) error {
	var b strings.Builder
	b.WriteString("🎮 Games\n\n")
	for _, g := range h.Registry.List() {
		l := g.Limits()
		fmt.Fprintf(&b, "/%s - %s", g.Command(), g.Description())
		if l.MinBet.IsPositive() && l.MaxBet.IsPositive() {
			fmt.Fprintf(&b, " (%s-%s)", money.USD(l.MinBet), money.USD(l.MaxBet))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n💳 /deposit, /withdraw, /balance, /top, /history")
	return c.Reply(b.String())
}

// HandleDeposit offers the deposit currencies. Private chat only.
func (h *AccountHandler) HandleDeposit(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if h.Payments == nil {
		return c.Reply("💳 Deposits are currently unavailable.")
	}
	if c.Chat().Type != tele.ChatPrivate {
		return c.Reply("💳 Please use /deposit in a private chat with the bot.")
	}
	if _, err := h.ensureUser(context.Background(), sender); err != nil {
		return fail(c, err)
	}
	row := make([]tele.InlineButton, 0, len(h.Payments.Currencies()))
	for _, cur := range h.Payments.Currencies() {
		row = append(row, tele.InlineButton{
			Text: strings.ToUpper(cur),
			Data: callback.Encode(PaymentCallbackGame, actDeposit, cur, sender.ID),
		})
	}
	return c.Reply("💳 Choose the currency to deposit:", &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{row}})
}

// Callback handles deposit currency buttons.
func (h *AccountHandler) Callback(c tele.Context, d callback.Data) error {
	if d.Action != actDeposit || len(d.Args) != 2 {
		return badCallback(c, d)
	}
	if !owner(c, d) {
		return notYours(c)
	}
	if h.Payments == nil {
		return alert(c, "💳 Deposits are currently unavailable.")
	}
	_ = c.Respond()
	addr, err := h.Payments.CreateDeposit(context.Background(), c.Sender().ID, d.Arg(0))
	if err != nil {
		if msg, known := userMessage(err); known {
			return h.edit(c, msg)
		}
		log.Error().Err(err).Int64("user_id", c.Sender().ID).Str("currency", d.Arg(0)).Msg("Failed to create deposit")
		return h.edit(c, "❌ The payment provider is unavailable, please try again later.")
	}
	return h.edit(c, fmt.Sprintf(
		"💳 Deposit %s\n\nSend at least %s %s to:\n%s\n\nYour balance is credited in USD once the payment is confirmed.",
		strings.ToUpper(addr.Currency), addr.MinAmount.String(), strings.ToUpper(addr.Currency), addr.Address,
	))
}

// HandleWithdraw handles /withdraw [<amount> <address>]. Without arguments
// the next private message is read as the withdrawal details.
func (h *AccountHandler) HandleWithdraw(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if h.Payments == nil {
		return c.Reply("💸 Withdrawals are currently unavailable.")
	}
	if c.Chat().Type != tele.ChatPrivate {
		return c.Reply("💸 Please use /withdraw in a private chat with the bot.")
	}
	if args := c.Args(); len(args) == 2 {
		return h.withdraw(c, args[0], args[1])
	}
	h.withdrawing.Put(keyOf(c), true)
	return c.Reply(fmt.Sprintf(
		"💸 Send the amount in USD and your %s address, e.g.:\n10 ltc1q...",
		strings.ToUpper(h.Payments.PayoutCurrency()),
	))
}

// HandleWithdrawText consumes the message following /withdraw.
func (h *AccountHandler) HandleWithdrawText(c tele.Context) (handled bool, err error) {
	if c.Sender() == nil || c.Chat() == nil || h.Payments == nil {
		return false, nil
	}
	if _, ok := h.withdrawing.Delete(keyOf(c)); !ok {
		return false, nil
	}
	fields := strings.Fields(c.Text())
	if len(fields) != 2 {
		return true, c.Reply("❌ Please send \"<amount> <address>\". Use /withdraw to try again.")
	}
	return true, h.withdraw(c, fields[0], fields[1])
}

func (h *AccountHandler) withdraw(c tele.Context, amountText, address string) error {
	amount, err := money.Parse(amountText)
	if err != nil {
		return fail(c, err)
	}
	res, err := h.Payments.RequestWithdrawal(context.Background(), c.Sender().ID, amount, address)
	if err != nil {
		if msg, known := userMessage(err); known {
			return c.Reply(msg)
		}
		log.Error().Err(err).Int64("user_id", c.Sender().ID).Msg("Withdrawal failed")
		return c.Reply("❌ The withdrawal could not be processed, please try again later.")
	}
	return c.Reply(fmt.Sprintf(
		"✅ Withdrawal submitted\n\n%s → %s %s\nTo: %s\nNew balance: %s",
		money.USD(res.AmountUSD), res.Amount.String(), strings.ToUpper(res.Currency), res.Address, money.USD(res.Balance),
	))
}

// Sweep forgets abandoned withdrawal prompts.
func (h *AccountHandler) Sweep(context.Context, retry.Sender) {
	h.withdrawing.Sweep()
}

// equivalent converts USD at price, rounded to six places.
func equivalent(usd, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return usd.DivRound(price, 6)
}
