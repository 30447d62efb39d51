package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/model"
	"github.com/goblinua/medinispx/internal/pkg/nowpayments"
	"github.com/goblinua/medinispx/internal/repository"
)

// memStore keeps users, transactions, deposits and withdrawals in memory with
// the same failure modes as the Postgres repositories.
type memStore struct {
	mu          sync.Mutex
	users       map[int64]*model.User
	txs         []*model.Transaction
	deposits    map[string]*model.PendingDeposit
	withdrawals map[int64]*model.Withdrawal
	nextID      int64
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[int64]*model.User{},
		deposits:    map[string]*model.PendingDeposit{},
		withdrawals: map[int64]*model.Withdrawal{},
	}
}

func (m *memStore) seed(id int64, username, balance string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &model.User{TelegramID: id, Username: username, Balance: decimal.RequireFromString(balance)}
}

func (m *memStore) balance(id int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].Balance
}

func (m *memStore) txCount(txType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, tx := range m.txs {
		if tx.Type == txType {
			n++
		}
	}
	return n
}

func copyUser(u *model.User) *model.User {
	c := *u
	return &c
}

func (m *memStore) record(id int64, amount decimal.Decimal, txType, desc string) {
	m.nextID++
	d := desc
	m.txs = append(m.txs, &model.Transaction{
		ID: m.nextID, UserID: id, Amount: amount, Type: txType, Description: &d, CreatedAt: time.Now(),
	})
}

func (m *memStore) GetOrCreate(_ context.Context, id int64, username string, initial decimal.Decimal) (*model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		if username != "" {
			u.Username = username
		}
		return copyUser(u), false, nil
	}
	u := &model.User{TelegramID: id, Username: username, Balance: initial}
	m.users[id] = u
	return copyUser(u), true, nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (m *memStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := strings.ToLower(strings.TrimPrefix(username, "@"))
	for _, u := range m.users {
		if strings.ToLower(u.Username) == name {
			return copyUser(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memStore) debitLocked(id int64, amount decimal.Decimal) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if u.Balance.LessThan(amount) {
		return nil, repository.ErrInsufficientBalance
	}
	u.Balance = u.Balance.Sub(amount)
	return u, nil
}

func (m *memStore) Debit(_ context.Context, id int64, amount decimal.Decimal, txType, desc string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.debitLocked(id, amount)
	if err != nil {
		return nil, err
	}
	m.record(id, amount.Neg(), txType, desc)
	return copyUser(u), nil
}

func (m *memStore) Credit(_ context.Context, id int64, amount decimal.Decimal, txType, desc string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.Balance = u.Balance.Add(amount)
	m.record(id, amount, txType, desc)
	return copyUser(u), nil
}

func (m *memStore) DebitPair(_ context.Context, a, b int64, amount decimal.Decimal, txType, desc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ua, ok := m.users[a]
	if !ok {
		return repository.ErrUserNotFound
	}
	ub, ok := m.users[b]
	if !ok {
		return repository.ErrUserNotFound
	}
	if ua.Balance.LessThan(amount) || ub.Balance.LessThan(amount) {
		return repository.ErrInsufficientBalance
	}
	ua.Balance = ua.Balance.Sub(amount)
	ub.Balance = ub.Balance.Sub(amount)
	m.record(a, amount.Neg(), txType, desc)
	m.record(b, amount.Neg(), txType, desc)
	return nil
}

func (m *memStore) SetBalance(_ context.Context, id int64, balance decimal.Decimal, desc string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	m.record(id, balance.Sub(u.Balance), model.TxTypeAdminSet, desc)
	u.Balance = balance
	return copyUser(u), nil
}

func (m *memStore) GetTopByBalance(_ context.Context, limit int) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, u := range m.users {
		out = append(out, copyUser(u))
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Balance.GreaterThan(out[j-1].Balance); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetByUserID(_ context.Context, id int64, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txs[i].UserID == id {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}

func (m *memStore) GetNetResult(_ context.Context, id int64, since time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, tx := range m.txs {
		if tx.UserID != id || tx.CreatedAt.Before(since) {
			continue
		}
		switch tx.Type {
		case model.TxTypeBet, model.TxTypeWin, model.TxTypeRefund:
			sum = sum.Add(tx.Amount)
		}
	}
	return sum, nil
}

// deposits and withdrawals

type memDeposits struct{ *memStore }

func (d memDeposits) Create(_ context.Context, p *model.PendingDeposit) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p.CreatedAt = time.Now()
	c := *p
	d.deposits[p.PaymentID] = &c
	return nil
}

func (d memDeposits) Get(_ context.Context, paymentID string) (*model.PendingDeposit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.deposits[paymentID]
	if !ok {
		return nil, repository.ErrDepositNotFound
	}
	c := *p
	return &c, nil
}

func (d memDeposits) Complete(_ context.Context, paymentID string, usd decimal.Decimal, desc string) (*model.PendingDeposit, *model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.deposits[paymentID]
	if !ok {
		return nil, nil, repository.ErrDepositNotFound
	}
	u, ok := d.users[p.UserID]
	if !ok {
		return nil, nil, repository.ErrUserNotFound
	}
	delete(d.deposits, paymentID)
	u.Balance = u.Balance.Add(usd)
	d.record(u.TelegramID, usd, model.TxTypeDeposit, desc)
	return p, copyUser(u), nil
}

func (d memDeposits) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for id, p := range d.deposits {
		if p.CreatedAt.Before(before) {
			delete(d.deposits, id)
			n++
		}
	}
	return n, nil
}

type memWithdrawals struct{ *memStore }

func (w memWithdrawals) CreateWithDebit(_ context.Context, wd *model.Withdrawal) (*model.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u, err := w.debitLocked(wd.UserID, wd.AmountUSD)
	if err != nil {
		return nil, err
	}
	w.record(wd.UserID, wd.AmountUSD.Neg(), model.TxTypeWithdraw, wd.Address)
	w.nextID++
	wd.ID = w.nextID
	wd.Status = model.WithdrawalPending
	c := *wd
	w.withdrawals[wd.ID] = &c
	return copyUser(u), nil
}

func (w memWithdrawals) SetPayoutID(_ context.Context, id int64, payoutID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	wd, ok := w.withdrawals[id]
	if !ok {
		return repository.ErrWithdrawalNotFound
	}
	wd.PayoutID = payoutID
	return nil
}

func (w memWithdrawals) GetByPayoutID(_ context.Context, payoutID string) (*model.Withdrawal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, wd := range w.withdrawals {
		if payoutID != "" && wd.PayoutID == payoutID {
			c := *wd
			return &c, nil
		}
	}
	return nil, repository.ErrWithdrawalNotFound
}

func (w memWithdrawals) MarkFinished(_ context.Context, id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	wd, ok := w.withdrawals[id]
	if !ok {
		return repository.ErrWithdrawalNotFound
	}
	if wd.Status != model.WithdrawalPending {
		return repository.ErrWithdrawalNotPending
	}
	wd.Status = model.WithdrawalFinished
	return nil
}

func (w memWithdrawals) Refund(_ context.Context, id int64, reason string) (*model.Withdrawal, *model.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wd, ok := w.withdrawals[id]
	if !ok {
		return nil, nil, repository.ErrWithdrawalNotFound
	}
	if wd.Status != model.WithdrawalPending {
		return nil, nil, repository.ErrWithdrawalNotPending
	}
	wd.Status = model.WithdrawalFailed
	u := w.users[wd.UserID]
	u.Balance = u.Balance.Add(wd.AmountUSD)
	w.record(wd.UserID, wd.AmountUSD, model.TxTypePayoutFail, reason)
	c := *wd
	return &c, copyUser(u), nil
}

func (w memWithdrawals) status(id int64) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.withdrawals[id].Status
}

// processor

type fakeGateway struct {
	mu         sync.Mutex
	minErr     error
	min        decimal.Decimal
	payments   []nowpayments.PaymentRequest
	payouts    []nowpayments.Withdrawal
	payoutErr  error
	nextPayout int
}

func (g *fakeGateway) MinAmount(context.Context, string) (decimal.Decimal, error) {
	if g.minErr != nil {
		return decimal.Zero, g.minErr
	}
	return g.min, nil
}

func (g *fakeGateway) CreatePayment(_ context.Context, r nowpayments.PaymentRequest) (*nowpayments.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments = append(g.payments, r)
	return &nowpayments.Payment{
		PaymentID:  nowpayments.ID("pay-" + r.PayCurrency),
		PayAddress: "addr-" + r.PayCurrency,
	}, nil
}

func (g *fakeGateway) CreatePayout(_ context.Context, w nowpayments.Withdrawal) (*nowpayments.Withdrawal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payouts = append(g.payouts, w)
	if g.payoutErr != nil {
		return nil, g.payoutErr
	}
	g.nextPayout++
	w.ID = nowpayments.ID("po-" + strconv.Itoa(g.nextPayout))
	return &w, nil
}

type fixedPrices map[string]decimal.Decimal

func (p fixedPrices) USDPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := p[strings.ToLower(symbol)]
	if !ok {
		return decimal.Zero, ErrUnsupportedCurrency
	}
	return price, nil
}

type notification struct {
	userID int64
	text   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{userID, text})
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
