// Package coingecko fetches USD spot prices from the CoinGecko simple price API.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/pkg/cache"
)

var (
	ErrUnknownCurrency = errors.New("coingecko: unknown currency")
	ErrNoPrice         = errors.New("coingecko: price not available")
)

// coinIDs maps ticker symbols to CoinGecko coin ids.
var coinIDs = map[string]string{
	"btc":  "bitcoin",
	"ltc":  "litecoin",
	"sol":  "solana",
	"eth":  "ethereum",
	"usdt": "tether",
}

// CoinID returns the CoinGecko id for a ticker symbol.
func CoinID(symbol string) (string, bool) {
	id, ok := coinIDs[strings.ToLower(symbol)]
	return id, ok
}

// Recorder observes outbound calls; *metrics.Metrics satisfies it.
type Recorder interface {
	PaymentRequest(endpoint string, err error)
}

// Client reads prices, caching them for TTL in Cache.
type Client struct {
	BaseURL  string
	APIKey   string
	HTTP     *http.Client
	Cache    cache.Store
	TTL      time.Duration
	Recorder Recorder
}

// New creates a client. store may be nil to disable caching.
func New(baseURL, apiKey string, timeout time.Duration, store cache.Store, ttl time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
		Cache:   store,
		TTL:     ttl,
	}
}

func cacheKey(coinID string) string { return "price:usd:" + coinID }

// USDPrice returns the USD price of one unit of symbol (e.g. "ltc").
func (c *Client) USDPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	id, ok := CoinID(symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, symbol)
	}

	if c.Cache != nil {
		if v, err := c.Cache.Get(ctx, cacheKey(id)); err == nil {
			if d, err := decimal.NewFromString(v); err == nil {
				return d, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("coin", id).Msg("Price cache read failed")
		}
	}

	prices, err := c.Prices(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	price, ok := prices[id]
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoPrice, id)
	}

	if c.Cache != nil {
		if err := c.Cache.Set(ctx, cacheKey(id), price.String(), c.TTL); err != nil {
			log.Warn().Err(err).Str("coin", id).Msg("Price cache write failed")
		}
	}
	return price, nil
}

// Prices fetches the USD price of every coin id in one request.
func (c *Client) Prices(ctx context.Context, ids ...string) (prices map[string]decimal.Decimal, err error) {
	defer func() {
		if c.Recorder != nil {
			c.Recorder.PaymentRequest("simple-price", err)
		}
	}()

	q := url.Values{
		"ids":           {strings.Join(ids, ",")},
		"vs_currencies": {"usd"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v3/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("coingecko: http %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("coingecko: decode: %w", err)
	}

	prices = make(map[string]decimal.Decimal, len(out))
	for id, vs := range out {
		if usd, ok := vs["usd"]; ok {
			prices[id] = usd
		}
	}
	return prices, nil
}

// ToCrypto converts a USD amount into units of symbol.
func (c *Client) ToCrypto(ctx context.Context, usd decimal.Decimal, symbol string) (decimal.Decimal, error) {
	price, err := c.USDPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return usd.DivRound(price, 8), nil
}

// ToUSD converts units of symbol into USD, rounded down to cents.
func (c *Client) ToUSD(ctx context.Context, amount decimal.Decimal, symbol string) (decimal.Decimal, error) {
	price, err := c.USDPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(price).Truncate(2), nil
}
