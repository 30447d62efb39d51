package match

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/game"
)

// Challenge is a pending PvP invitation.
type Challenge struct {
	ID         string
	ChatID     int64
	Challenger Player
	Target     Player
	Settings   Settings
	CreatedAt  time.Time
	MessageID  int
}

// Rematch remembers a finished match so it can be replayed or doubled.
type Rematch struct {
	Opponent Player
	Settings Settings
}

// Doubled returns the rematch with twice the stake.
func (r Rematch) Doubled() Rematch {
	r.Settings.Stake = r.Settings.Stake.Mul(decimal.NewFromInt(2))
	return r
}

// Manager tracks running matches, pending challenges and recent games.
type Manager struct {
	mu         sync.Mutex
	matches    map[game.Key]*Match
	challenges map[string]*Challenge
	last       map[game.Key]Rematch

	challengeTTL time.Duration
	idleTTL      time.Duration
	now          func() time.Time
}

// NewManager creates a manager. Challenges expire after challengeTTL;
// matches with no roll for idleTTL are swept.
func NewManager(challengeTTL, idleTTL time.Duration) *Manager {
	return &Manager{
		matches:      make(map[game.Key]*Match),
		challenges:   make(map[string]*Challenge),
		last:         make(map[game.Key]Rematch),
		challengeTTL: challengeTTL,
		idleTTL:      idleTTL,
		now:          time.Now,
	}
}

// Now returns the manager's clock.
func (mg *Manager) Now() time.Time { return mg.now() }

// Busy reports whether the user is in a running match in the chat.
func (mg *Manager) Busy(chatID, userID int64) bool {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	_, ok := mg.matches[game.Key{ChatID: chatID, UserID: userID}]
	return ok
}

// Get returns the user's running match in the chat.
func (mg *Manager) Get(chatID, userID int64) (*Match, bool) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	m, ok := mg.matches[game.Key{ChatID: chatID, UserID: userID}]
	return m, ok
}

// Challenge registers an invitation from challenger to target.
func (mg *Manager) Challenge(chatID int64, challenger, target Player, s Settings) (*Challenge, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if challenger.ID == target.ID {
		return nil, ErrSelfChallenge
	}
	mg.mu.Lock()
	defer mg.mu.Unlock()
	if mg.busyLocked(chatID, challenger.ID) || mg.busyLocked(chatID, target.ID) {
		return nil, game.ErrAlreadyInGame
	}
	ch := &Challenge{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		Challenger: challenger,
		Target:     target,
		Settings:   s,
		CreatedAt:  mg.now(),
	}
	mg.challenges[ch.ID] = ch
	return ch, nil
}

// SetChallengeMessage records the message carrying the accept buttons.
func (mg *Manager) SetChallengeMessage(id string, messageID int) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	if ch, ok := mg.challenges[id]; ok {
		ch.MessageID = messageID
	}
}

// Accept removes the challenge when userID is its target.
func (mg *Manager) Accept(id string, userID int64) (*Challenge, error) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	ch, err := mg.pendingLocked(id)
	if err != nil {
		return nil, err
	}
	if ch.Target.ID != userID {
		return nil, ErrNotChallenged
	}
	delete(mg.challenges, id)
	return ch, nil
}

// Decline removes the challenge when userID is either party.
func (mg *Manager) Decline(id string, userID int64) (*Challenge, error) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	ch, err := mg.pendingLocked(id)
	if err != nil {
		return nil, err
	}
	if ch.Target.ID != userID && ch.Challenger.ID != userID {
		return nil, ErrNotChallenged
	}
	delete(mg.challenges, id)
	return ch, nil
}

func (mg *Manager) pendingLocked(id string) (*Challenge, error) {
	ch, ok := mg.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	if mg.challengeTTL > 0 && mg.now().Sub(ch.CreatedAt) > mg.challengeTTL {
		delete(mg.challenges, id)
		return nil, ErrChallengeNotFound
	}
	return ch, nil
}

// Start registers a running match for both human players.
func (mg *Manager) Start(chatID int64, p1, p2 Player, s Settings) (*Match, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if p1.ID == p2.ID {
		return nil, ErrSelfChallenge
	}
	mg.mu.Lock()
	defer mg.mu.Unlock()
	if mg.busyLocked(chatID, p1.ID) || (!p2.IsHouse() && mg.busyLocked(chatID, p2.ID)) {
		return nil, game.ErrAlreadyInGame
	}
	m := New(chatID, p1, p2, s, mg.now())
	for _, p := range m.Players {
		if !p.IsHouse() {
			mg.matches[game.Key{ChatID: chatID, UserID: p.ID}] = m
		}
	}
	return m, nil
}

// Finish forgets a match and remembers it for rematches. It reports false
// when the match was already swept, in which case its stakes were refunded
// and nothing may be paid out.
func (mg *Manager) Finish(m *Match) bool {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	if !mg.removeLocked(m) {
		return false
	}
	for i, p := range m.Players {
		if p.IsHouse() {
			continue
		}
		mg.last[game.Key{ChatID: m.ChatID, UserID: p.ID}] = Rematch{
			Opponent: m.Players[1-i],
			Settings: m.Settings,
		}
	}
	return true
}

func (mg *Manager) removeLocked(m *Match) bool {
	owned := false
	for _, p := range m.Players {
		k := game.Key{ChatID: m.ChatID, UserID: p.ID}
		if cur, ok := mg.matches[k]; ok && cur == m {
			delete(mg.matches, k)
			owned = true
		}
	}
	return owned
}

// Last returns the user's most recent finished match in the chat.
func (mg *Manager) Last(chatID, userID int64) (Rematch, bool) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	r, ok := mg.last[game.Key{ChatID: chatID, UserID: userID}]
	return r, ok
}

// Sweep drops expired challenges and idle matches. Idle matches are returned
// so their stakes can be refunded. A match with a roll in flight is never idle.
func (mg *Manager) Sweep() (idle []*Match, expired []*Challenge) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	now := mg.now()
	if mg.challengeTTL > 0 {
		for id, ch := range mg.challenges {
			if now.Sub(ch.CreatedAt) > mg.challengeTTL {
				delete(mg.challenges, id)
				expired = append(expired, ch)
			}
		}
	}
	if mg.idleTTL > 0 {
		seen := make(map[*Match]bool)
		for _, m := range mg.matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			if m.idle(now, mg.idleTTL) {
				idle = append(idle, m)
			}
		}
		for _, m := range idle {
			mg.removeLocked(m)
		}
	}
	return idle, expired
}

func (mg *Manager) busyLocked(chatID, userID int64) bool {
	_, ok := mg.matches[game.Key{ChatID: chatID, UserID: userID}]
	return ok
}
