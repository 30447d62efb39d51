// Package metrics exposes Prometheus counters for bets, payouts and payments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics groups every collector the bot reports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	bets          *prometheus.CounterVec
	wagered       *prometheus.CounterVec
	payouts       *prometheus.CounterVec
	paid          *prometheus.CounterVec
	settled       *prometheus.CounterVec
	sessions      *prometheus.GaugeVec
	webhookEvents *prometheus.CounterVec
	paymentCalls  *prometheus.CounterVec
	deposits      prometheus.Counter
	sendRetries   prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casino_bets_total", Help: "Stakes placed per game.",
		}, []string{"game"}),
		wagered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casino_wagered_usd_total", Help: "USD staked per game.",
		}, []string{"game"}),
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casino_payouts_total", Help: "Winning payouts per game.",
		}, []string{"game"}),
		paid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casino_paid_usd_total", Help: "USD paid out per game.",
		}, []string{"game"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casino_games_settled_total", Help: "Finished rounds by outcome.",
		}, []string{"game", "outcome"}),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "casino_active_sessions", Help: "Games currently in progress.",
		}, []string{"game"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casino_webhook_events_total", Help: "Payment callbacks received.",
		}, []string{"kind", "result"}),
		paymentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casino_payment_api_requests_total", Help: "Calls to external payment and price APIs.",
		}, []string{"endpoint", "result"}),
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "casino_deposit_usd_total", Help: "USD credited from deposits.",
		}),
		sendRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "casino_telegram_send_retries_total", Help: "Retried Telegram API calls.",
		}),
	}
	reg.MustRegister(
		m.bets, m.wagered, m.payouts, m.paid, m.settled, m.sessions,
		m.webhookEvents, m.paymentCalls, m.deposits, m.sendRetries,
	)
	return m
}

// Bet records a stake.
func (m *Metrics) Bet(game string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.bets.WithLabelValues(game).Inc()
	m.wagered.WithLabelValues(game).Add(amount.InexactFloat64())
}

// Payout records a winning credit.
func (m *Metrics) Payout(game string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.payouts.WithLabelValues(game).Inc()
	m.paid.WithLabelValues(game).Add(amount.InexactFloat64())
}

// Settled records a finished round; outcome is "win" or "loss".
func (m *Metrics) Settled(game, outcome string) {
	if m == nil {
		return
	}
	m.settled.WithLabelValues(game, outcome).Inc()
}

// SessionStarted and SessionEnded track in-progress games.
func (m *Metrics) SessionStarted(game string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(game).Inc()
}

func (m *Metrics) SessionEnded(game string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(game).Dec()
}

// WebhookEvent records a processed payment callback.
func (m *Metrics) WebhookEvent(kind, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(kind, result).Inc()
}

// PaymentRequest records an outbound API call.
func (m *Metrics) PaymentRequest(endpoint string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.paymentCalls.WithLabelValues(endpoint, result).Inc()
}

// Deposit records a credited deposit.
func (m *Metrics) Deposit(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.deposits.Add(amount.InexactFloat64())
}

// SendRetry records a retried Telegram call.
func (m *Metrics) SendRetry() {
	if m == nil {
		return
	}
	m.sendRetries.Inc()
}
