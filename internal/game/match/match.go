package match

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goblinua/medinispx/internal/pkg/money"
)

var (
	ErrInvalidKind       = errors.New("unknown match kind")
	ErrInvalidMode       = errors.New("unknown match mode")
	ErrInvalidPoints     = errors.New("points to win must be 1, 2 or 3")
	ErrInvalidRoll       = errors.New("roll value out of range")
	ErrStaleRound        = errors.New("this button is from a previous round")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrNotPlayer         = errors.New("you are not playing in this match")
	ErrMatchOver         = errors.New("match is already over")
	ErrRollInProgress    = errors.New("a roll is already in progress")
	ErrSelfChallenge     = errors.New("you can't challenge yourself")
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	ErrNotChallenged     = errors.New("this challenge is not for you")
)

// House is the user ID standing in for the bot opponent.
const House int64 = 0

// MaxPoints is the largest points-to-win a match may be played to.
const MaxPoints = 3

// Settings is everything needed to start a match besides the players.
type Settings struct {
	Kind   Kind
	Mode   Mode
	Points int
	Stake  decimal.Decimal
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if _, ok := profiles[s.Kind]; !ok {
		return ErrInvalidKind
	}
	if _, err := ParseMode(string(s.Mode)); err != nil {
		return err
	}
	if s.Points < 1 || s.Points > MaxPoints {
		return ErrInvalidPoints
	}
	if !s.Stake.IsPositive() {
		return errors.New("stake must be positive")
	}
	return nil
}

// Player is one side of a match.
type Player struct {
	ID   int64
	Name string
}

// IsHouse reports whether the side is played by the bot.
func (p Player) IsHouse() bool { return p.ID == House }

// StepKind says what happened after a roll was recorded.
type StepKind int

const (
	// RollAgain means the same side still has rolls left this round.
	RollAgain StepKind = iota
	// TurnPassed means the other side rolls next.
	TurnPassed
	// RoundOver means the round was scored and the next one began.
	RoundOver
	// MatchOver means a side reached the points to win.
	MatchOver
)

// RoundResult is a scored round.
type RoundResult struct {
	Number int
	Rolls  [2][]int
	Scores [2]int
	// Point is the side that took the point, or -1.
	Point int
	Tally [2]int
}

// Step is the outcome of recording a roll.
type Step struct {
	Kind StepKind
	// Next is the side to roll next; meaningless once the match is over.
	Next  int
	Round *RoundResult
}

// Match is a running first-to-N match. Its methods are safe for concurrent use.
type Match struct {
	ID       string
	ChatID   int64
	Settings Settings
	Players  [2]Player

	mu       sync.Mutex
	round    int
	turn     int
	rolls    [2][]int
	tally    [2]int
	winner   int
	rolling  bool
	finished bool
	touched  time.Time
}

// New creates a match at round 1 with player one to roll.
func New(chatID int64, p1, p2 Player, s Settings, now time.Time) *Match {
	return &Match{
		ID:       uuid.NewString(),
		ChatID:   chatID,
		Settings: s,
		Players:  [2]Player{p1, p2},
		round:    1,
		winner:   -1,
		touched:  now,
	}
}

// VsHouse reports whether the second side is the bot.
func (m *Match) VsHouse() bool { return m.Players[1].IsHouse() }

// Side returns the index of userID in the match.
func (m *Match) Side(userID int64) (int, bool) {
	for i, p := range m.Players {
		if p.ID == userID && !p.IsHouse() {
			return i, true
		}
	}
	return -1, false
}

// Round returns the current round number.
func (m *Match) Round() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round
}

// Turn returns the side expected to roll.
func (m *Match) Turn() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turn
}

// Tally returns the points each side has.
func (m *Match) Tally() [2]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tally
}

// Finished reports whether the match is over and who won (-1 while running).
func (m *Match) Finished() (bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished, m.winner
}

// RollsLeft returns how many rolls the side on turn still owes this round.
func (m *Match) RollsLeft() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Settings.Mode.Rolls() - len(m.rolls[m.turn])
}

func (m *Match) idle(now time.Time, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.rolling && now.Sub(m.touched) > ttl
}

// BeginRoll reserves the next roll for userID pressing a button for round.
// The caller sends the dice and then calls CompleteRoll, or AbortRoll if
// sending failed.
func (m *Match) BeginRoll(userID int64, round int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	side, ok := m.Side(userID)
	if !ok {
		return -1, ErrNotPlayer
	}
	return side, m.begin(side, round)
}

// BeginHouseRoll reserves the next roll for the bot side.
func (m *Match) BeginHouseRoll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.VsHouse() {
		return ErrNotPlayer
	}
	return m.begin(1, m.round)
}

func (m *Match) begin(side, round int) error {
	switch {
	case m.finished:
		return ErrMatchOver
	case round != m.round:
		return ErrStaleRound
	case side != m.turn:
		return ErrNotYourTurn
	case m.rolling:
		return ErrRollInProgress
	}
	m.rolling = true
	return nil
}

// AbortRoll releases a reservation without recording anything.
func (m *Match) AbortRoll() {
	m.mu.Lock()
	m.rolling = false
	m.mu.Unlock()
}

// CompleteRoll records the reserved roll's value.
func (m *Match) CompleteRoll(value int, now time.Time) (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.rolling {
		return Step{}, errors.New("no roll in progress")
	}
	m.rolling = false
	if value < 1 || value > 6 {
		return Step{}, ErrInvalidRoll
	}
	m.touched = now
	m.rolls[m.turn] = append(m.rolls[m.turn], value)

	need := m.Settings.Mode.Rolls()
	if len(m.rolls[m.turn]) < need {
		return Step{Kind: RollAgain, Next: m.turn}, nil
	}
	if m.turn == 0 {
		m.turn = 1
		return Step{Kind: TurnPassed, Next: 1}, nil
	}
	return m.score(), nil
}

func (m *Match) score() Step {
	s1, s2, point := Resolve(m.Settings.Kind, m.Settings.Mode, m.rolls[0], m.rolls[1])
	if point >= 0 {
		m.tally[point]++
	}
	res := &RoundResult{
		Number: m.round,
		Rolls:  [2][]int{m.rolls[0], m.rolls[1]},
		Scores: [2]int{s1, s2},
		Point:  point,
		Tally:  m.tally,
	}
	m.rolls = [2][]int{}
	m.turn = 0
	if point >= 0 && m.tally[point] >= m.Settings.Points {
		m.finished = true
		m.winner = point
		return Step{Kind: MatchOver, Next: -1, Round: res}
	}
	m.round++
	return Step{Kind: RoundOver, Next: 0, Round: res}
}

// Prize is what the winner is credited: the stake back plus the winnings.
func Prize(stake, multiplier decimal.Decimal) decimal.Decimal {
	return stake.Add(money.Payout(stake, multiplier))
}
