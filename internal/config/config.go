// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Bot run modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Validation errors.
var (
	ErrMissingToken      = errors.New("bot token is required")
	ErrInvalidMode       = errors.New("bot mode must be polling or webhook")
	ErrMissingPublicURL  = errors.New("bot public_url is required in webhook mode")
	ErrMissingPaymentKey = errors.New("payments api_key is required when payments are enabled")
	ErrMissingIPNSecret  = errors.New("payments ipn_secret is required when payments are enabled")
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Account   AccountConfig   `mapstructure:"account"`
	Games     GamesConfig     `mapstructure:"games"`
	Payments  PaymentsConfig  `mapstructure:"payments"`
	Prices    PricesConfig    `mapstructure:"prices"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
	// Mode is either "polling" or "webhook".
	Mode string `mapstructure:"mode"`
	// PublicURL is the externally reachable URL of /telegram-webhook.
	PublicURL   string        `mapstructure:"public_url"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds Redis connection configuration.
// An empty Addr selects the in-process cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HTTPConfig holds the webhook/metrics server configuration.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Release         bool          `mapstructure:"release"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// AccountConfig holds account defaults.
type AccountConfig struct {
	InitialBalance decimal.Decimal `mapstructure:"initial_balance"`
	LockTimeout    time.Duration   `mapstructure:"lock_timeout"`
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	AnimationDelay time.Duration  `mapstructure:"animation_delay"`
	SessionTTL     time.Duration  `mapstructure:"session_ttl"`
	ChallengeTTL   time.Duration  `mapstructure:"challenge_ttl"`
	Match          MatchConfig    `mapstructure:"match"`
	Coin           CoinConfig     `mapstructure:"coin"`
	Mines          LimitConfig    `mapstructure:"mines"`
	Tower          LimitConfig    `mapstructure:"tower"`
	Roulette       RouletteConfig `mapstructure:"roulette"`
	Slots          LimitConfig    `mapstructure:"slots"`
	Predict        LimitConfig    `mapstructure:"predict"`
}

// LimitConfig holds the stake limits and cooldown shared by every game.
type LimitConfig struct {
	MinBet          decimal.Decimal `mapstructure:"min_bet"`
	MaxBet          decimal.Decimal `mapstructure:"max_bet"`
	CooldownSeconds int             `mapstructure:"cooldown_seconds"`
}

// MatchConfig holds configuration for the dice-style PvP games.
type MatchConfig struct {
	LimitConfig   `mapstructure:",squash"`
	WinMultiplier decimal.Decimal `mapstructure:"win_multiplier"`
}

// CoinConfig holds coin flip configuration.
type CoinConfig struct {
	LimitConfig   `mapstructure:",squash"`
	WinMultiplier decimal.Decimal `mapstructure:"win_multiplier"`
	WinChance     float64         `mapstructure:"win_chance"`
	HeadsSticker  string          `mapstructure:"heads_sticker"`
	TailsSticker  string          `mapstructure:"tails_sticker"`
}

// RouletteConfig holds roulette configuration.
type RouletteConfig struct {
	LimitConfig `mapstructure:",squash"`
	// HighStake is the stake above which a spin never lands in the winning set.
	HighStake decimal.Decimal `mapstructure:"high_stake"`
	WinChance float64         `mapstructure:"win_chance"`
}

// PaymentsConfig holds NOWPayments configuration.
type PaymentsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	IPNSecret      string        `mapstructure:"ipn_secret"`
	Email          string        `mapstructure:"email"`
	Password       string        `mapstructure:"password"`
	CallbackURL    string        `mapstructure:"callback_url"`
	PayoutURL      string        `mapstructure:"payout_callback_url"`
	Currencies     []string      `mapstructure:"currencies"`
	PayoutCurrency string        `mapstructure:"payout_currency"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// PricesConfig holds CoinGecko configuration.
type PricesConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, DATABASE_HOST, PAYMENTS_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the bot cannot start without.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return ErrMissingToken
	}
	switch c.Bot.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Bot.PublicURL == "" {
			return ErrMissingPublicURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Bot.Mode)
	}
	if c.Payments.Enabled {
		if c.Payments.APIKey == "" {
			return ErrMissingPaymentKey
		}
		if c.Payments.IPNSecret == "" {
			return ErrMissingIPNSecret
		}
	}
	return nil
}

// secretKeys are registered empty so AutomaticEnv can populate them on Unmarshal.
var secretKeys = []string{
	"bot.token",
	"bot.public_url",
	"database.password",
	"redis.password",
	"payments.api_key",
	"payments.ipn_secret",
	"payments.email",
	"payments.password",
	"payments.callback_url",
	"payments.payout_callback_url",
	"prices.api_key",
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	for _, key := range secretKeys {
		v.SetDefault(key, "")
	}

	v.SetDefault("bot.mode", ModePolling)
	v.SetDefault("bot.poll_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "casino")
	v.SetDefault("database.name", "casino")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.shutdown_timeout", "5s")

	v.SetDefault("log.level", "info")

	v.SetDefault("account.initial_balance", "0")
	v.SetDefault("account.lock_timeout", "5s")

	v.SetDefault("games.animation_delay", "4s")
	v.SetDefault("games.session_ttl", "30m")
	v.SetDefault("games.challenge_ttl", "5m")

	v.SetDefault("games.match.min_bet", "0.01")
	v.SetDefault("games.match.max_bet", "1000")
	v.SetDefault("games.match.cooldown_seconds", 3)
	v.SetDefault("games.match.win_multiplier", "1.92")

	v.SetDefault("games.coin.min_bet", "0.01")
	v.SetDefault("games.coin.max_bet", "1000")
	v.SetDefault("games.coin.cooldown_seconds", 3)
	v.SetDefault("games.coin.win_multiplier", "1.92")
	v.SetDefault("games.coin.win_chance", 0.4)

	v.SetDefault("games.mines.min_bet", "0.01")
	v.SetDefault("games.mines.max_bet", "1000")
	v.SetDefault("games.mines.cooldown_seconds", 2)

	v.SetDefault("games.tower.min_bet", "0.01")
	v.SetDefault("games.tower.max_bet", "1000")
	v.SetDefault("games.tower.cooldown_seconds", 2)

	v.SetDefault("games.roulette.min_bet", "1")
	v.SetDefault("games.roulette.max_bet", "1000")
	v.SetDefault("games.roulette.cooldown_seconds", 3)
	v.SetDefault("games.roulette.high_stake", "100")
	v.SetDefault("games.roulette.win_chance", 0.37)

	v.SetDefault("games.slots.min_bet", "0.25")
	v.SetDefault("games.slots.max_bet", "50")
	v.SetDefault("games.slots.cooldown_seconds", 3)

	v.SetDefault("games.predict.min_bet", "0.25")
	v.SetDefault("games.predict.max_bet", "50")
	v.SetDefault("games.predict.cooldown_seconds", 3)

	v.SetDefault("payments.enabled", false)
	v.SetDefault("payments.base_url", "https://api.nowpayments.io")
	v.SetDefault("payments.currencies", []string{"sol", "btc", "ltc"})
	v.SetDefault("payments.payout_currency", "ltc")
	v.SetDefault("payments.timeout", "15s")

	v.SetDefault("prices.base_url", "https://api.coingecko.com")
	v.SetDefault("prices.cache_ttl", "1m")
	v.SetDefault("prices.timeout", "10s")
}

// decodeHook extends viper's default hooks with decimal parsing.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToDecimalHook,
	)
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func stringToDecimalHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return data, nil
	}
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
