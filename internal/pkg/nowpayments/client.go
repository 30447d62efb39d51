// Package nowpayments is a minimal client for the NOWPayments REST API:
// minimum amounts, payments, payouts and IPN signature checks.
package nowpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMinAmount is used when the API cannot report a minimum.
var DefaultMinAmount = decimal.RequireFromString("0.01")

var (
	ErrMissingCredentials = errors.New("nowpayments: email and password are required for payouts")
	ErrEmptyResponse      = errors.New("nowpayments: response is missing required fields")
)

// APIError is a non-2xx response.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nowpayments %s: http %d: %s", e.Endpoint, e.Status, e.Body)
}

// Recorder observes outbound calls; *metrics.Metrics satisfies it.
type Recorder interface {
	PaymentRequest(endpoint string, err error)
}

// ID accepts both JSON strings and numbers; the API uses either for ids.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*id = ID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Client talks to api.nowpayments.io.
type Client struct {
	BaseURL  string
	APIKey   string
	Email    string
	Password string
	HTTP     *http.Client
	Recorder Recorder

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// New creates a client with the given request timeout.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// WithCredentials sets the account login used for payouts.
func (c *Client) WithCredentials(email, password string) *Client {
	c.Email = email
	c.Password = password
	return c
}

func (c *Client) record(endpoint string, err error) {
	if c.Recorder != nil {
		c.Recorder.PaymentRequest(endpoint, err)
	}
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, endpoint, method, path string, in, out any, bearer string) (err error) {
	defer func() { c.record(endpoint, err) }()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("nowpayments %s: encode: %w", endpoint, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("nowpayments %s: %w", endpoint, err)
	}
	req.Header.Set("x-api-key", c.APIKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("nowpayments %s: %w", endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return &APIError{Endpoint: endpoint, Status: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("nowpayments %s: decode: %w", endpoint, err)
	}
	return nil
}

// MinAmount returns the smallest accepted payment in currency.
func (c *Client) MinAmount(ctx context.Context, currency string) (decimal.Decimal, error) {
	var out struct {
		MinAmount decimal.Decimal `json:"min_amount"`
	}
	q := url.Values{"currency_from": {strings.ToLower(currency)}}
	if err := c.do(ctx, "min-amount", http.MethodGet, "/v1/min-amount?"+q.Encode(), nil, &out, ""); err != nil {
		return decimal.Zero, err
	}
	if !out.MinAmount.IsPositive() {
		return decimal.Zero, ErrEmptyResponse
	}
	return out.MinAmount, nil
}

// PaymentRequest is the body of POST /v1/payment.
type PaymentRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description"`
	IPNCallbackURL   string  `json:"ipn_callback_url,omitempty"`
}

// Payment is the part of the payment response the bot uses.
type Payment struct {
	PaymentID     ID              `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	PayAddress    string          `json:"pay_address"`
	PayAmount     decimal.Decimal `json:"pay_amount"`
	PayCurrency   string          `json:"pay_currency"`
	OrderID       string          `json:"order_id"`
}

// CreatePayment opens a payment and returns its deposit address.
func (c *Client) CreatePayment(ctx context.Context, r PaymentRequest) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, "payment", http.MethodPost, "/v1/payment", r, &out, ""); err != nil {
		return nil, err
	}
	if out.PaymentID == "" || out.PayAddress == "" {
		return nil, ErrEmptyResponse
	}
	return &out, nil
}

// tokenTTL is kept below the API's five minute JWT lifetime.
const tokenTTL = 4 * time.Minute

// Authenticate returns a bearer token, reusing a recent one.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}
	if c.Email == "" || c.Password == "" {
		return "", ErrMissingCredentials
	}

	in := map[string]string{"email": c.Email, "password": c.Password}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, "auth", http.MethodPost, "/v1/auth", in, &out, ""); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", ErrEmptyResponse
	}
	c.token, c.tokenExp = out.Token, time.Now().Add(tokenTTL)
	return c.token, nil
}

// Withdrawal is one entry of a payout batch.
type Withdrawal struct {
	ID             ID          `json:"id,omitempty"`
	Address        string      `json:"address"`
	Currency       string      `json:"currency"`
	Amount         json.Number `json:"amount"`
	IPNCallbackURL string      `json:"ipn_callback_url,omitempty"`
	Status         string      `json:"status,omitempty"`
}

// Payout is the response of POST /v1/payout.
type Payout struct {
	ID          ID           `json:"id"`
	Withdrawals []Withdrawal `json:"withdrawals"`
}

// CreatePayout sends a single-withdrawal payout batch and returns the
// withdrawal as the API recorded it.
func (c *Client) CreatePayout(ctx context.Context, w Withdrawal) (*Withdrawal, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	in := struct {
		IPNCallbackURL string       `json:"ipn_callback_url,omitempty"`
		Withdrawals    []Withdrawal `json:"withdrawals"`
	}{IPNCallbackURL: w.IPNCallbackURL, Withdrawals: []Withdrawal{w}}

	var out Payout
	if err := c.do(ctx, "payout", http.MethodPost, "/v1/payout", in, &out, token); err != nil {
		return nil, err
	}
	if len(out.Withdrawals) == 0 || out.Withdrawals[0].ID == "" {
		return nil, ErrEmptyResponse
	}
	return &out.Withdrawals[0], nil
}
