package handler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/config"
	"github.com/goblinua/medinispx/internal/game"
	"github.com/goblinua/medinispx/internal/game/match"
	"github.com/goblinua/medinispx/internal/model"
	"github.com/goblinua/medinispx/internal/pkg/lock"
	"github.com/goblinua/medinispx/internal/service"
)

// ledger is an in-memory service.UserStore that keeps every movement.
type ledger struct {
	mu      sync.Mutex
	users   map[int64]*model.User
	entries []model.Transaction
}

func newLedger() *ledger {
	return &ledger{users: make(map[int64]*model.User)}
}

func (l *ledger) seed(id int64, username, balance string) {
	l.users[id] = &model.User{TelegramID: id, Username: username, Balance: decimal.RequireFromString(balance)}
}

func (l *ledger) balance(id int64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.users[id].Balance.String()
}

func (l *ledger) count(id int64, txType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.UserID == id && e.Type == txType {
			n++
		}
	}
	return n
}

func (l *ledger) record(id int64, amount decimal.Decimal, txType string) {
	l.entries = append(l.entries, model.Transaction{UserID: id, Amount: amount, Type: txType})
}

func (l *ledger) GetOrCreate(_ context.Context, id int64, username string, initial decimal.Decimal) (*model.User, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if u, ok := l.users[id]; ok {
		cp := *u
		return &cp, false, nil
	}
	u := &model.User{TelegramID: id, Username: username, Balance: initial}
	l.users[id] = u
	cp := *u
	return &cp, true, nil
}

func (l *ledger) GetByID(_ context.Context, id int64) (*model.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.users[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (l *ledger) GetByUsername(_ context.Context, username string) (*model.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := strings.TrimPrefix(username, "@")
	for _, u := range l.users {
		if strings.EqualFold(u.Username, name) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, service.ErrUserNotFound
}

func (l *ledger) Debit(_ context.Context, id int64, amount decimal.Decimal, txType, _ string) (*model.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.users[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	if u.Balance.LessThan(amount) {
		return nil, service.ErrInsufficientBalance
	}
	u.Balance = u.Balance.Sub(amount)
	l.record(id, amount.Neg(), txType)
	cp := *u
	return &cp, nil
}

func (l *ledger) Credit(_ context.Context, id int64, amount decimal.Decimal, txType, _ string) (*model.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.users[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	u.Balance = u.Balance.Add(amount)
	l.record(id, amount, txType)
	cp := *u
	return &cp, nil
}

func (l *ledger) DebitPair(_ context.Context, a, b int64, amount decimal.Decimal, txType, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ua, okA := l.users[a]
	ub, okB := l.users[b]
	if !okA || !okB {
		return service.ErrUserNotFound
	}
	if ua.Balance.LessThan(amount) || ub.Balance.LessThan(amount) {
		return service.ErrInsufficientBalance
	}
	ua.Balance = ua.Balance.Sub(amount)
	ub.Balance = ub.Balance.Sub(amount)
	l.record(a, amount.Neg(), txType)
	l.record(b, amount.Neg(), txType)
	return nil
}

func (l *ledger) SetBalance(_ context.Context, id int64, balance decimal.Decimal, _ string) (*model.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.users[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	u.Balance = balance
	cp := *u
	return &cp, nil
}

// diceBot answers dice sends with scripted values and records everything else.
type diceBot struct {
	mu     sync.Mutex
	values []int
	texts  []any
	edits  int
	next   int
}

func (b *diceBot) Send(_ tele.Recipient, what any, _ ...any) (*tele.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	if d, ok := what.(*tele.Dice); ok {
		v := b.values[0]
		b.values = b.values[1:]
		return &tele.Message{ID: b.next, Dice: &tele.Dice{Type: d.Type, Value: v}}, nil
	}
	b.texts = append(b.texts, what)
	return &tele.Message{ID: b.next}, nil
}

func (b *diceBot) Edit(_ tele.Editable, what any, _ ...any) (*tele.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edits++
	b.texts = append(b.texts, what)
	return &tele.Message{}, nil
}

// pressContext is a button press in a group chat.
type pressContext struct {
	tele.Context
	user     *tele.User
	chat     *tele.Chat
	answered []string
}

func (p *pressContext) Sender() *tele.User       { return p.user }
func (p *pressContext) Chat() *tele.Chat         { return p.chat }
func (p *pressContext) Callback() *tele.Callback { return &tele.Callback{} }
func (p *pressContext) Message() *tele.Message   { return &tele.Message{ID: 99, Chat: p.chat} }
func (p *pressContext) Reply(any, ...any) error  { return nil }
func (p *pressContext) Respond(r ...*tele.CallbackResponse) error {
	if len(r) > 0 {
		p.answered = append(p.answered, r[0].Text)
	}
	return nil
}

const matchChat int64 = -200

func press(id int64, username string) *pressContext {
	return &pressContext{user: &tele.User{ID: id, Username: username}, chat: &tele.Chat{ID: matchChat}}
}

func newMatchFixture(t *testing.T, idle time.Duration, dice ...int) (*MatchHandler, *ledger, *diceBot) {
	t.Helper()
	l := newLedger()
	l.seed(1, "alice", "10")
	l.seed(2, "bob", "10")
	bot := &diceBot{values: dice}
	d := &Deps{
		Config: &config.Config{Games: config.GamesConfig{
			Match: config.MatchConfig{WinMultiplier: decimal.RequireFromString("1.92")},
		}},
		Accounts: service.NewAccountService(l, nil, decimal.Zero),
		Registry: game.NewRegistry(),
		Locks:    lock.NewUserLock(time.Second),
		Retry:    noRetry,
		RNG:      game.DefaultRNG(),
		Bot:      bot,
	}
	return NewMatchHandler(d, match.NewManager(time.Minute, idle)), l, bot
}

var oneRoundDice = match.Settings{Kind: match.Dice, Mode: match.Normal, Points: 1, Stake: decimal.NewFromInt(5)}

func startHouseMatch(t *testing.T, h *MatchHandler) {
	t.Helper()
	_, err := h.Accounts.PlaceBet(context.Background(), 1, "dice", oneRoundDice.Stake)
	require.NoError(t, err)
	_, err = h.manager.Start(matchChat, match.Player{ID: 1, Name: "@alice"}, match.Player{ID: match.House, Name: "Bot"}, oneRoundDice)
	require.NoError(t, err)
}

func TestMatchHandler_HumanWinnerIsPaidPrize(t *testing.T) {
	h, l, _ := newMatchFixture(t, time.Hour, 6, 1)
	startHouseMatch(t, h)

	require.NoError(t, h.roll(press(1, "alice"), 1))

	// 10 - 5 stake + 5 stake back + floor(5 × 1.92)
	assert.Equal(t, "19.6", l.balance(1))
	assert.Equal(t, 1, l.count(1, model.TxTypeWin))
	assert.False(t, h.manager.Busy(matchChat, 1))
	_, ok := h.manager.Last(matchChat, 1)
	assert.True(t, ok)
}

func TestMatchHandler_HouseWinCreditsNothing(t *testing.T) {
	h, l, _ := newMatchFixture(t, time.Hour, 1, 6)
	startHouseMatch(t, h)

	require.NoError(t, h.roll(press(1, "alice"), 1))

	assert.Equal(t, "5", l.balance(1))
	assert.Zero(t, l.count(1, model.TxTypeWin))
	assert.False(t, h.manager.Busy(matchChat, 1))
}

func TestMatchHandler_SweepRefundsBothStakesOnce(t *testing.T) {
	h, l, bot := newMatchFixture(t, time.Millisecond)
	ctx := context.Background()
	a, b := match.Player{ID: 1, Name: "@alice"}, match.Player{ID: 2, Name: "@bob"}

	require.NoError(t, h.Accounts.PlaceMatchBets(ctx, 1, 2, "dice", oneRoundDice.Stake))
	m, err := h.manager.Start(matchChat, a, b, oneRoundDice)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	h.Sweep(ctx, bot)
	h.Sweep(ctx, bot)

	assert.Equal(t, "10", l.balance(1))
	assert.Equal(t, "10", l.balance(2))
	assert.Equal(t, 1, l.count(1, model.TxTypeRefund))
	assert.Equal(t, 1, l.count(2, model.TxTypeRefund))
	assert.Contains(t, bot.texts, "⌛ The match timed out. Stakes have been refunded.")

	// A roll that lands after the sweep must not pay on top of the refund.
	_, err = m.BeginRoll(1, 1)
	require.NoError(t, err)
	_, err = m.CompleteRoll(6, time.Now())
	require.NoError(t, err)
	_, err = m.BeginRoll(2, 1)
	require.NoError(t, err)
	step, err := m.CompleteRoll(1, time.Now())
	require.NoError(t, err)
	require.Equal(t, match.MatchOver, step.Kind)

	require.NoError(t, h.finish(press(2, "bob"), m))
	assert.Equal(t, "10", l.balance(1))
	assert.Zero(t, l.count(1, model.TxTypeWin))
}

func TestMatchHandler_AcceptRefundsWhenStartFails(t *testing.T) {
	h, l, _ := newMatchFixture(t, time.Hour)
	a, b := match.Player{ID: 1, Name: "@alice"}, match.Player{ID: 2, Name: "@bob"}

	ch, err := h.manager.Challenge(matchChat, a, b, oneRoundDice)
	require.NoError(t, err)
	// The challenger starts a bot match before the challenge is accepted.
	_, err = h.manager.Start(matchChat, a, match.Player{ID: match.House, Name: "Bot"}, oneRoundDice)
	require.NoError(t, err)

	c := press(2, "bob")
	require.NoError(t, h.accept(c, ch.ID))

	assert.Equal(t, "10", l.balance(1))
	assert.Equal(t, "10", l.balance(2))
	assert.Equal(t, 1, l.count(1, model.TxTypeRefund))
	assert.Equal(t, 1, l.count(2, model.TxTypeRefund))
	assert.False(t, h.manager.Busy(matchChat, 2))
	require.Len(t, c.answered, 1)
	assert.Contains(t, c.answered[0], "already in a game")
}
