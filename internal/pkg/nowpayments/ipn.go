package nowpayments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SignatureHeader carries the HMAC of an IPN body.
const SignatureHeader = "x-nowpayments-sig"

// ErrInvalidSignature is returned when an IPN is not signed with our secret.
var ErrInvalidSignature = errors.New("nowpayments: invalid ipn signature")

// Payment statuses reported by IPN.
const (
	StatusFinished = "finished"
	StatusFailed   = "failed"
	StatusExpired  = "expired"
)

// Payout statuses reported by IPN; the API sends them upper-case.
const (
	PayoutFinished = "FINISHED"
	PayoutFailed   = "FAILED"
	PayoutRejected = "REJECTED"
)

// PaymentIPN is a payment status callback.
type PaymentIPN struct {
	PaymentID     ID              `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	PayAddress    string          `json:"pay_address"`
	PayAmount     decimal.Decimal `json:"pay_amount"`
	ActuallyPaid  decimal.Decimal `json:"actually_paid"`
	PayCurrency   string          `json:"pay_currency"`
	OrderID       string          `json:"order_id"`
}

// Paid returns the crypto amount received, falling back to the quoted amount.
func (p *PaymentIPN) Paid() decimal.Decimal {
	if p.ActuallyPaid.IsPositive() {
		return p.ActuallyPaid
	}
	return p.PayAmount
}

// PayoutIPN is a payout status callback.
type PayoutIPN struct {
	ID       ID              `json:"id"`
	Status   string          `json:"status"`
	Address  string          `json:"address"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Error    string          `json:"error"`
}

// Sign computes the IPN signature: HMAC-SHA512 over the body re-encoded with
// sorted keys, hex encoded.
func Sign(secret string, body []byte) (string, error) {
	canonical, err := canonicalJSON(body)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature checks sig against the body.
func VerifySignature(secret string, body []byte, sig string) error {
	if secret == "" || sig == "" {
		return ErrInvalidSignature
	}
	want, err := Sign(secret, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(sig)))) {
		return ErrInvalidSignature
	}
	return nil
}

// canonicalJSON re-encodes body with object keys sorted at every level,
// numbers kept verbatim and HTML characters unescaped.
func canonicalJSON(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode ipn body: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode ipn body: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
