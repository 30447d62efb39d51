// Package bot wires the Telegram transport to the handlers.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/config"
	"github.com/goblinua/medinispx/internal/game/coin"
	"github.com/goblinua/medinispx/internal/game/match"
	"github.com/goblinua/medinispx/internal/game/mines"
	"github.com/goblinua/medinispx/internal/game/predict"
	"github.com/goblinua/medinispx/internal/game/roulette"
	"github.com/goblinua/medinispx/internal/game/slot"
	"github.com/goblinua/medinispx/internal/game/tower"
	"github.com/goblinua/medinispx/internal/handler"
	"github.com/goblinua/medinispx/internal/pkg/callback"
)

// Bot wraps the telebot instance with the handlers it routes to.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	webhook *tele.Webhook

	account  *handler.AccountHandler
	admin    *handler.AdminHandler
	ranking  *handler.RankingHandler
	matches  *handler.MatchHandler
	coin     *handler.CoinHandler
	mines    *handler.MinesHandler
	tower    *handler.TowerHandler
	roulette *handler.RouletteHandler
	slots    *handler.SlotsHandler
	predict  *handler.PredictHandler

	callbacks map[string]func(tele.Context, callback.Data) error
	sweepers  []handler.Sweeper
}

// Dependencies holds what the bot needs besides its token.
type Dependencies struct {
	Deps    *handler.Deps
	Manager *match.Manager
}

// NewTelebot creates the telebot instance for the configured mode. In
// webhook mode updates arrive through Bot.WebhookHandler.
func NewTelebot(cfg *config.Config) (*tele.Bot, *tele.Webhook, error) {
	if cfg.Bot.Token == "" {
		return nil, nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token: cfg.Bot.Token,
		OnError: func(err error, c tele.Context) {
			ev := log.Error().Err(err)
			if c != nil && c.Sender() != nil {
				ev = ev.Int64("user_id", c.Sender().ID)
			}
			ev.Msg("Telegram handler error")
		},
	}

	var wh *tele.Webhook
	if cfg.Bot.Mode == config.ModeWebhook {
		// Empty Listen: telebot registers the URL and the HTTP server feeds it.
		wh = &tele.Webhook{Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Bot.PublicURL}}
		pref.Poller = wh
	} else {
		timeout := cfg.Bot.PollTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		pref.Poller = &tele.LongPoller{Timeout: timeout}
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return b, wh, nil
}

// New registers every handler on teleBot.
func New(teleBot *tele.Bot, webhook *tele.Webhook, deps *Dependencies) *Bot {
	d := deps.Deps
	b := &Bot{
		bot:      teleBot,
		cfg:      d.Config,
		webhook:  webhook,
		account:  handler.NewAccountHandler(d),
		admin:    handler.NewAdminHandler(d),
		ranking:  handler.NewRankingHandler(d),
		matches:  handler.NewMatchHandler(d, deps.Manager),
		coin:     handler.NewCoinHandler(d),
		mines:    handler.NewMinesHandler(d),
		tower:    handler.NewTowerHandler(d),
		roulette: handler.NewRouletteHandler(d),
		slots:    handler.NewSlotsHandler(d),
		predict:  handler.NewPredictHandler(d),
	}

	b.callbacks = map[string]func(tele.Context, callback.Data) error{
		coin.CallbackGame:           b.coin.Callback,
		mines.CallbackGame:          b.mines.Callback,
		tower.CallbackGame:          b.tower.Callback,
		roulette.CallbackGame:       b.roulette.Callback,
		slot.CallbackGame:           b.slots.Callback,
		predict.CallbackGame:        b.predict.Callback,
		handler.PaymentCallbackGame: b.account.Callback,
	}
	for _, k := range match.Kinds {
		b.callbacks[string(k)] = b.matches.Callback
	}

	b.sweepers = []handler.Sweeper{b.matches, b.coin, b.mines, b.tower, b.roulette, b.slots, b.predict, b.account}

	b.registerMiddleware()
	b.registerHandlers()
	return b
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.account.HandleStart)
	b.bot.Handle("/balance", b.account.HandleBalance)
	b.bot.Handle("/help", b.account.HandleHelp)
	b.bot.Handle("/deposit", b.account.HandleDeposit)
	b.bot.Handle("/withdraw", b.account.HandleWithdraw)
	b.bot.Handle("/top", b.ranking.HandleTop)
	b.bot.Handle("/history", b.ranking.HandleHistory)

	for _, k := range match.Kinds {
		b.bot.Handle("/"+string(k), b.matches.Command(k))
	}
	b.bot.Handle("/coin", b.coin.HandleCoin)
	b.bot.Handle("/mine", b.mines.HandleMine)
	b.bot.Handle("/tower", b.tower.HandleTower)
	b.bot.Handle("/roul", b.roulette.HandleRoulette)
	b.bot.Handle("/slots", b.slots.HandleSlots)
	b.bot.Handle("/predict", b.predict.HandlePredict)

	admin := b.bot.Group()
	admin.Use(AdminMiddleware(b.cfg))
	admin.Handle("/admin_add", b.admin.HandleAdminAdd)
	admin.Handle("/admin_sub", b.admin.HandleAdminSub)
	admin.Handle("/admin_set", b.admin.HandleAdminSet)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
	b.bot.Handle(tele.OnText, b.handleText)
}

// handleCallback routes a button press by its game prefix.
func (b *Bot) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	d, ok := callback.Decode(cb.Data)
	if !ok {
		log.Warn().Str("data", cb.Data).Msg("Undecodable callback")
		return c.Respond(&tele.CallbackResponse{Text: "⚠️ This button is no longer valid.", ShowAlert: true})
	}
	route, ok := b.callbacks[d.Game]
	if !ok {
		log.Warn().Str("game", d.Game).Str("action", d.Action).Msg("Unknown callback game")
		return c.Respond(&tele.CallbackResponse{Text: "⚠️ This button is no longer valid.", ShowAlert: true})
	}
	return route(c, d)
}

// handleText serves the free-text steps: "@username" challenges and
// withdrawal details.
func (b *Bot) handleText(c tele.Context) error {
	if handled, err := b.matches.HandleUsername(c); handled {
		return err
	}
	if handled, err := b.account.HandleWithdrawText(c); handled {
		return err
	}
	return nil
}

// Sweep expires idle sessions in every handler.
func (b *Bot) Sweep(ctx context.Context) {
	for _, s := range b.sweepers {
		s.Sweep(ctx, b.bot)
	}
}

// RunSweeper sweeps every interval until ctx is done.
func (b *Bot) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.Sweep(ctx)
		}
	}
}

// Run polls (or waits for webhook updates) until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	log.Info().Str("mode", b.cfg.Bot.Mode).Str("bot", b.bot.Me.Username).Msg("Starting bot")
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.bot.Start()
	}()
	<-ctx.Done()
	log.Info().Msg("Stopping bot")
	b.bot.Stop()
	<-done
	return nil
}

// WebhookHandler returns the Telegram update endpoint, or nil when polling.
func (b *Bot) WebhookHandler() http.Handler {
	if b.webhook == nil {
		return nil
	}
	return b.webhook
}

// Telebot returns the underlying telebot instance.
func (b *Bot) Telebot() *tele.Bot {
	return b.bot
}
