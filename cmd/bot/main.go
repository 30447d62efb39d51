// Package main is the entry point for the casino bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/goblinua/medinispx/internal/bot"
	"github.com/goblinua/medinispx/internal/config"
	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/game/match"
	"github.com/goblinua/medinispx/internal/handler"
	"github.com/goblinua/medinispx/internal/metrics"
	"github.com/goblinua/medinispx/internal/pkg/cache"
	"github.com/goblinua/medinispx/internal/pkg/coingecko"
	"github.com/goblinua/medinispx/internal/pkg/db"
	"github.com/goblinua/medinispx/internal/pkg/lock"
	"github.com/goblinua/medinispx/internal/pkg/nowpayments"
	"github.com/goblinua/medinispx/internal/pkg/retry"
	"github.com/goblinua/medinispx/internal/repository"
	"github.com/goblinua/medinispx/internal/service"
	"github.com/goblinua/medinispx/internal/webhook"
)

const (
	sweepInterval   = 30 * time.Second
	depositSweep    = time.Hour
	depositLifetime = 24 * time.Hour
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().Str("mode", cfg.Bot.Mode).Bool("payments", cfg.Payments.Enabled).Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	store := newStore(ctx, cfg.Redis)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	userRepo := repository.NewUserRepository(dbPool.Pool)
	txRepo := repository.NewTransactionRepository(dbPool.Pool)

	userLock := lock.NewUserLock(cfg.Account.LockTimeout)
	accountService := service.NewAccountService(userRepo, m, cfg.Account.InitialBalance)
	rankingService := service.NewRankingService(userRepo, txRepo, time.Local)
	prices := coingecko.New(cfg.Prices.BaseURL, cfg.Prices.APIKey, cfg.Prices.Timeout, store, cfg.Prices.CacheTTL)

	var paymentService *service.PaymentService
	if cfg.Payments.Enabled {
		gateway := nowpayments.New(cfg.Payments.BaseURL, cfg.Payments.APIKey, cfg.Payments.Timeout).
			WithCredentials(cfg.Payments.Email, cfg.Payments.Password)
		gateway.Recorder = m
		paymentService = service.NewPaymentService(
			gateway,
			prices,
			repository.NewDepositRepository(dbPool.Pool),
			repository.NewWithdrawalRepository(dbPool.Pool),
			store,
			userLock,
			m,
			service.PaymentOptions{
				Currencies:     cfg.Payments.Currencies,
				PayoutCurrency: cfg.Payments.PayoutCurrency,
				CallbackURL:    cfg.Payments.CallbackURL,
				PayoutURL:      cfg.Payments.PayoutURL,
				IPNSecret:      cfg.Payments.IPNSecret,
			},
		)
	}

	registry := game.NewRegistry()
	registerGames(registry, cfg.Games)
	log.Info().Int("game_count", registry.Count()).Msg("Games registered")

	policy := retry.DefaultPolicy
	policy.OnRetry = func(err error, wait time.Duration) {
		m.SendRetry()
		log.Warn().Err(err).Dur("wait", wait).Msg("Retrying Telegram call")
	}

	teleBot, wh, err := bot.NewTelebot(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}
	if paymentService != nil {
		paymentService.SetNotifier(handler.NewNotifier(teleBot, policy))
	}

	deps := &handler.Deps{
		Config:   cfg,
		Accounts: accountService,
		Payments: paymentService,
		Ranking:  rankingService,
		Prices:   prices,
		Registry: registry,
		Locks:    userLock,
		Cache:    store,
		Metrics:  m,
		Retry:    policy,
		RNG:      game.DefaultRNG(),
		Bot:      teleBot,
	}
	b := bot.New(teleBot, wh, &bot.Dependencies{
		Deps:    deps,
		Manager: match.NewManager(cfg.Games.ChallengeTTL, cfg.Games.SessionTTL),
	})

	opts := webhook.Options{Telegram: b.WebhookHandler(), Gatherer: reg, Health: dbPool.HealthCheck}
	if paymentService != nil {
		opts.Payments = paymentService
	}
	server := webhook.NewServer(cfg.HTTP, opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return b.RunSweeper(gctx, sweepInterval) })
	if paymentService != nil {
		g.Go(func() error {
			ticker := time.NewTicker(depositSweep)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					paymentService.CleanupExpired(gctx, depositLifetime)
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Shut down with error")
		return
	}
	log.Info().Msg("Shut down gracefully")
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.JSON {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// newStore prefers Redis and falls back to process memory.
func newStore(ctx context.Context, cfg config.RedisConfig) cache.Store {
	if cfg.Addr == "" {
		log.Info().Msg("Redis not configured, using in-memory cache")
		return cache.NewMemoryStore()
	}
	client, err := cache.ConnectRedis(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis unavailable, using in-memory cache")
		return cache.NewMemoryStore()
	}
	log.Info().Str("addr", cfg.Addr).Msg("Connected to Redis")
	return cache.NewRedisStore(client, "medinispx:")
}

func limits(l config.LimitConfig) game.Limits {
	return game.Limits{
		MinBet:   l.MinBet,
		MaxBet:   l.MaxBet,
		Cooldown: time.Duration(l.CooldownSeconds) * time.Second,
	}
}

func registerGames(r *game.Registry, cfg config.GamesConfig) {
	for _, k := range match.Kinds {
		prof, _ := match.ProfileFor(k)
		r.MustRegister(game.Info{
			DisplayName: prof.Name,
			Cmd:         string(k),
			Summary:     prof.Emoji + " first to 1-3 points, against a player or the bot",
			Bounds:      limits(cfg.Match.LimitConfig),
		})
	}
	r.MustRegister(
		game.Info{DisplayName: "Coin", Cmd: "coin", Summary: "🪙 heads or tails", Bounds: limits(cfg.Coin.LimitConfig)},
		game.Info{DisplayName: "Mines", Cmd: "mine", Summary: "💣 uncover gems, cash out before a mine", Bounds: limits(cfg.Mines)},
		game.Info{DisplayName: "Tower", Cmd: "tower", Summary: "🐒 climb nine levels", Bounds: limits(cfg.Tower)},
		game.Info{DisplayName: "Roulette", Cmd: "roul", Summary: "🎡 numbers, dozens, colours", Bounds: limits(cfg.Roulette.LimitConfig)},
		game.Info{DisplayName: "Slots", Cmd: "slots", Summary: "🎰 three reels, private chat", Bounds: limits(cfg.Slots)},
		game.Info{DisplayName: "Predict", Cmd: "predict", Summary: "🔮 call the next throw", Bounds: limits(cfg.Predict)},
	)
}
