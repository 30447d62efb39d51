package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/metrics"
	"github.com/goblinua/medinispx/internal/model"
	"github.com/goblinua/medinispx/internal/pkg/cache"
	"github.com/goblinua/medinispx/internal/pkg/lock"
	"github.com/goblinua/medinispx/internal/pkg/money"
	"github.com/goblinua/medinispx/internal/pkg/nowpayments"
	"github.com/goblinua/medinispx/internal/repository"
)

// Payment errors.
var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidAddress      = errors.New("invalid withdrawal address")
	ErrPayoutFailed        = errors.New("payout request failed")
	ErrInvalidSignature    = nowpayments.ErrInvalidSignature
	ErrMalformedIPN        = errors.New("malformed ipn body")
)

// PaymentGateway is the processor API.
type PaymentGateway interface {
	MinAmount(ctx context.Context, currency string) (decimal.Decimal, error)
	CreatePayment(ctx context.Context, r nowpayments.PaymentRequest) (*nowpayments.Payment, error)
	CreatePayout(ctx context.Context, w nowpayments.Withdrawal) (*nowpayments.Withdrawal, error)
}

// PriceSource converts crypto to USD.
type PriceSource interface {
	USDPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// DepositStore persists pending deposits.
type DepositStore interface {
	Create(ctx context.Context, d *model.PendingDeposit) error
	Get(ctx context.Context, paymentID string) (*model.PendingDeposit, error)
	Complete(ctx context.Context, paymentID string, usd decimal.Decimal, description string) (*model.PendingDeposit, *model.User, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// WithdrawalStore persists payouts.
type WithdrawalStore interface {
	CreateWithDebit(ctx context.Context, w *model.Withdrawal) (*model.User, error)
	SetPayoutID(ctx context.Context, id int64, payoutID string) error
	GetByPayoutID(ctx context.Context, payoutID string) (*model.Withdrawal, error)
	MarkFinished(ctx context.Context, id int64) error
	Refund(ctx context.Context, id int64, reason string) (*model.Withdrawal, *model.User, error)
}

// Notifier delivers a private message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// PaymentOptions holds the processor settings the service needs.
type PaymentOptions struct {
	Currencies     []string
	PayoutCurrency string
	CallbackURL    string
	PayoutURL      string
	IPNSecret      string
}

// PaymentService runs deposits and withdrawals through the processor.
type PaymentService struct {
	gateway     PaymentGateway
	prices      PriceSource
	deposits    DepositStore
	withdrawals WithdrawalStore
	store       cache.Store
	locks       *lock.UserLock
	notifier    Notifier
	metrics     *metrics.Metrics
	opts        PaymentOptions
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(
	gateway PaymentGateway,
	prices PriceSource,
	deposits DepositStore,
	withdrawals WithdrawalStore,
	store cache.Store,
	locks *lock.UserLock,
	m *metrics.Metrics,
	opts PaymentOptions,
) *PaymentService {
	return &PaymentService{
		gateway:     gateway,
		prices:      prices,
		deposits:    deposits,
		withdrawals: withdrawals,
		store:       store,
		locks:       locks,
		metrics:     m,
		opts:        opts,
	}
}

// SetNotifier wires the chat transport; it is created after the service.
func (s *PaymentService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Currencies lists the deposit currencies in display order.
func (s *PaymentService) Currencies() []string {
	return s.opts.Currencies
}

// PayoutCurrency is the currency withdrawals are paid in.
func (s *PaymentService) PayoutCurrency() string {
	return s.opts.PayoutCurrency
}

// DepositAddress is what the user is told to pay.
type DepositAddress struct {
	PaymentID string
	Currency  string
	Address   string
	MinAmount decimal.Decimal
}

// CreateDeposit opens a processor payment for the minimum amount of currency
// and records it as pending.
func (s *PaymentService) CreateDeposit(ctx context.Context, userID int64, currency string) (*DepositAddress, error) {
	currency = strings.ToLower(currency)
	if !slices.Contains(s.opts.Currencies, currency) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}

	minAmount, err := s.gateway.MinAmount(ctx, currency)
	if err != nil {
		log.Warn().Err(err).Str("currency", currency).Msg("Failed to fetch min amount, using fallback")
		minAmount = nowpayments.DefaultMinAmount
	}

	payment, err := s.gateway.CreatePayment(ctx, nowpayments.PaymentRequest{
		PriceAmount:      minAmount.InexactFloat64(),
		PriceCurrency:    currency,
		PayCurrency:      currency,
		OrderID:          fmt.Sprintf("%d_%s", userID, uuid.NewString()[:8]),
		OrderDescription: "Deposit to bot balance",
		IPNCallbackURL:   s.opts.CallbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	deposit := &model.PendingDeposit{
		PaymentID: string(payment.PaymentID),
		UserID:    userID,
		Amount:    minAmount,
		Currency:  currency,
		Address:   payment.PayAddress,
	}
	if err := s.deposits.Create(ctx, deposit); err != nil {
		return nil, err
	}

	log.Info().
		Int64("user_id", userID).
		Str("payment_id", deposit.PaymentID).
		Str("currency", currency).
		Msg("Deposit address issued")

	return &DepositAddress{
		PaymentID: deposit.PaymentID,
		Currency:  currency,
		Address:   payment.PayAddress,
		MinAmount: minAmount,
	}, nil
}

// HandlePaymentIPN processes a payment callback. Only "finished" payments
// credit; replays of a processed payment are accepted and ignored.
func (s *PaymentService) HandlePaymentIPN(ctx context.Context, body []byte, signature string) error {
	if err := nowpayments.VerifySignature(s.opts.IPNSecret, body, signature); err != nil {
		s.metrics.WebhookEvent("deposit", "bad_signature")
		return err
	}

	var ipn nowpayments.PaymentIPN
	if err := json.Unmarshal(body, &ipn); err != nil || ipn.PaymentID == "" {
		s.metrics.WebhookEvent("deposit", "malformed")
		return ErrMalformedIPN
	}
	paymentID := string(ipn.PaymentID)

	if ipn.PaymentStatus != nowpayments.StatusFinished {
		log.Debug().Str("payment_id", paymentID).Str("status", ipn.PaymentStatus).Msg("Ignoring payment status")
		s.metrics.WebhookEvent("deposit", "ignored")
		return nil
	}

	claimed, err := s.claim(ctx, "ipn:payment:"+paymentID)
	if err != nil {
		return err
	}
	if !claimed {
		s.metrics.WebhookEvent("deposit", "in_flight")
		return nil
	}
	err = s.creditDeposit(ctx, paymentID, &ipn)
	if err != nil {
		s.release(ctx, "ipn:payment:"+paymentID)
	}
	return err
}

// ipnClaimTTL covers the processor's retry window for a single callback.
const ipnClaimTTL = 10 * time.Minute

// claim marks a callback as being processed so concurrent deliveries of the
// same IPN do not race each other. Without a store every call is claimed.
func (s *PaymentService) claim(ctx context.Context, key string) (bool, error) {
	if s.store == nil {
		return true, nil
	}
	ok, err := s.store.SetNX(ctx, key, "1", ipnClaimTTL)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("IPN claim failed, processing anyway")
		return true, nil
	}
	return ok, nil
}

func (s *PaymentService) release(ctx context.Context, key string) {
	if s.store == nil {
		return
	}
	if err := s.store.Del(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to release IPN claim")
	}
}

func (s *PaymentService) creditDeposit(ctx context.Context, paymentID string, ipn *nowpayments.PaymentIPN) error {
	deposit, err := s.deposits.Get(ctx, paymentID)
	if errors.Is(err, repository.ErrDepositNotFound) {
		s.metrics.WebhookEvent("deposit", "duplicate")
		return nil
	}
	if err != nil {
		return err
	}

	currency := strings.ToLower(ipn.PayCurrency)
	if currency == "" {
		currency = deposit.Currency
	}
	price, err := s.prices.USDPrice(ctx, currency)
	if err != nil {
		return fmt.Errorf("failed to price deposit %s: %w", paymentID, err)
	}
	paid := ipn.Paid()
	usd := money.Floor(paid.Mul(price))

	desc := fmt.Sprintf("%s %s (payment %s)", paid.String(), strings.ToUpper(currency), paymentID)
	_, user, err := s.deposits.Complete(ctx, paymentID, usd, desc)
	if errors.Is(err, repository.ErrDepositNotFound) {
		s.metrics.WebhookEvent("deposit", "duplicate")
		return nil
	}
	if err != nil {
		return err
	}

	s.metrics.WebhookEvent("deposit", "credited")
	s.metrics.Deposit(usd)
	log.Info().
		Int64("user_id", user.TelegramID).
		Str("payment_id", paymentID).
		Str("usd", usd.String()).
		Msg("Deposit credited")

	s.notify(ctx, user.TelegramID, fmt.Sprintf(
		"✅ Deposit of %s %s confirmed! +%s\nNew balance: %s",
		paid.String(), strings.ToUpper(currency), money.USD(usd), money.USD(user.Balance),
	))
	return nil
}

// WithdrawalResult describes an accepted withdrawal.
type WithdrawalResult struct {
	AmountUSD decimal.Decimal
	Amount    decimal.Decimal
	Currency  string
	Address   string
	Balance   decimal.Decimal
}

// RequestWithdrawal debits amountUSD and asks the processor to pay it out.
// A rejected payout request is refunded immediately.
func (s *PaymentService) RequestWithdrawal(ctx context.Context, userID int64, amountUSD decimal.Decimal, address string) (*WithdrawalResult, error) {
	amountUSD = money.Floor(amountUSD)
	if !amountUSD.IsPositive() {
		return nil, ErrInvalidAmount
	}
	address = strings.TrimSpace(address)
	if address == "" || strings.ContainsAny(address, " \t\n") {
		return nil, ErrInvalidAddress
	}

	if err := s.locks.Lock(ctx, userID); err != nil {
		return nil, err
	}
	defer s.locks.Unlock(userID)

	currency := s.opts.PayoutCurrency
	price, err := s.prices.USDPrice(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to price withdrawal: %w", err)
	}

	w := &model.Withdrawal{
		UserID:    userID,
		AmountUSD: amountUSD,
		Amount:    amountUSD.DivRound(price, 8),
		Currency:  currency,
		Address:   address,
	}
	user, err := s.withdrawals.CreateWithDebit(ctx, w)
	if err != nil {
		return nil, err
	}

	payout, err := s.gateway.CreatePayout(ctx, nowpayments.Withdrawal{
		Address:        address,
		Currency:       currency,
		Amount:         json.Number(w.Amount.String()),
		IPNCallbackURL: s.opts.PayoutURL,
	})
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Int64("withdrawal_id", w.ID).Msg("Payout request failed, refunding")
		if _, _, rerr := s.withdrawals.Refund(ctx, w.ID, "payout request failed"); rerr != nil {
			log.Error().Err(rerr).Int64("withdrawal_id", w.ID).Msg("Failed to refund withdrawal")
		}
		return nil, fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}

	if err := s.withdrawals.SetPayoutID(ctx, w.ID, string(payout.ID)); err != nil {
		log.Error().Err(err).Int64("withdrawal_id", w.ID).Str("payout_id", string(payout.ID)).Msg("Failed to store payout id")
	}

	log.Info().
		Int64("user_id", userID).
		Str("usd", amountUSD.String()).
		Str("amount", w.Amount.String()).
		Str("payout_id", string(payout.ID)).
		Msg("Withdrawal submitted")

	return &WithdrawalResult{
		AmountUSD: amountUSD,
		Amount:    w.Amount,
		Currency:  currency,
		Address:   address,
		Balance:   user.Balance,
	}, nil
}

// HandlePayoutIPN settles a withdrawal from a payout callback. Failed or
// rejected payouts are refunded exactly once.
func (s *PaymentService) HandlePayoutIPN(ctx context.Context, body []byte, signature string) error {
	if err := nowpayments.VerifySignature(s.opts.IPNSecret, body, signature); err != nil {
		s.metrics.WebhookEvent("payout", "bad_signature")
		return err
	}

	var ipn nowpayments.PayoutIPN
	if err := json.Unmarshal(body, &ipn); err != nil || ipn.ID == "" {
		s.metrics.WebhookEvent("payout", "malformed")
		return ErrMalformedIPN
	}

	w, err := s.withdrawals.GetByPayoutID(ctx, string(ipn.ID))
	if errors.Is(err, repository.ErrWithdrawalNotFound) {
		log.Warn().Str("payout_id", string(ipn.ID)).Msg("Payout callback for unknown withdrawal")
		s.metrics.WebhookEvent("payout", "unknown")
		return nil
	}
	if err != nil {
		return err
	}

	switch strings.ToUpper(ipn.Status) {
	case nowpayments.PayoutFinished:
		err = s.withdrawals.MarkFinished(ctx, w.ID)
		if errors.Is(err, repository.ErrWithdrawalNotPending) {
			s.metrics.WebhookEvent("payout", "duplicate")
			return nil
		}
		if err != nil {
			return err
		}
		s.metrics.WebhookEvent("payout", "finished")
		return nil

	case nowpayments.PayoutFailed, nowpayments.PayoutRejected:
		reason := "payout " + strings.ToLower(ipn.Status)
		_, user, err := s.withdrawals.Refund(ctx, w.ID, reason)
		if errors.Is(err, repository.ErrWithdrawalNotPending) {
			s.metrics.WebhookEvent("payout", "duplicate")
			return nil
		}
		if err != nil {
			return err
		}
		s.metrics.WebhookEvent("payout", "refunded")
		log.Warn().Int64("user_id", w.UserID).Str("payout_id", string(ipn.ID)).Str("status", ipn.Status).Msg("Withdrawal refunded")
		s.notify(ctx, w.UserID, fmt.Sprintf(
			"⚠️ Your withdrawal of %s could not be completed and was refunded.\nNew balance: %s",
			money.USD(w.AmountUSD), money.USD(user.Balance),
		))
		return nil

	default:
		s.metrics.WebhookEvent("payout", "ignored")
		return nil
	}
}

// CleanupExpired removes deposits whose addresses are no longer valid.
func (s *PaymentService) CleanupExpired(ctx context.Context, maxAge time.Duration) {
	n, err := s.deposits.DeleteExpired(ctx, time.Now().Add(-maxAge))
	if err != nil {
		log.Error().Err(err).Msg("Failed to clean up pending deposits")
		return
	}
	if n > 0 {
		log.Info().Int64("count", n).Msg("Expired pending deposits removed")
	}
}

func (s *PaymentService) notify(ctx context.Context, userID int64, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, text); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to notify user")
	}
}
