// Package match implements the first-to-N emoji dice matches (dice,
// football, basketball, bowling, darts) played against another chat member
// or the house.
package match

import "fmt"

// Kind is the emoji game a match is played with.
type Kind string

const (
	Dice       Kind = "dice"
	Football   Kind = "football"
	Basketball Kind = "basketball"
	Bowling    Kind = "bowl"
	Darts      Kind = "dart"
)

// Kinds lists every match kind in menu order.
var Kinds = []Kind{Dice, Football, Basketball, Bowling, Darts}

// Mode selects how a side's rolls become a score.
type Mode string

const (
	Normal Mode = "normal"
	Double Mode = "double"
	Crazy  Mode = "crazy"
)

// Modes lists every mode in menu order.
var Modes = []Mode{Normal, Double, Crazy}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Normal, Double, Crazy:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Rolls returns the rolls each side makes per round.
func (m Mode) Rolls() int {
	if m == Double {
		return 2
	}
	return 1
}

// Rule decides which side takes a round's point.
type Rule int

const (
	// HigherWins gives the point to the strictly greater score.
	HigherWins Rule = iota
	// Exclusive gives the point only when one side scored and the other did not.
	Exclusive
)

// Profile is the static description of a kind.
type Profile struct {
	Kind      Kind
	Name      string
	Emoji     string
	Verb      string
	Rule      Rule
	Threshold int
}

var profiles = map[Kind]Profile{
	Dice:       {Kind: Dice, Name: "Dice", Emoji: "🎲", Verb: "Roll Dice", Rule: HigherWins},
	Bowling:    {Kind: Bowling, Name: "Bowling", Emoji: "🎳", Verb: "Bowl", Rule: HigherWins},
	Darts:      {Kind: Darts, Name: "Darts", Emoji: "🎯", Verb: "Throw Dart", Rule: HigherWins},
	Football:   {Kind: Football, Name: "Football", Emoji: "⚽", Verb: "Take a Shot", Rule: Exclusive, Threshold: 3},
	Basketball: {Kind: Basketball, Name: "Basketball", Emoji: "🏀", Verb: "Shoot", Rule: Exclusive, Threshold: 4},
}

// ProfileFor returns the profile of a kind.
func ProfileFor(k Kind) (Profile, bool) {
	s, ok := profiles[k]
	return s, ok
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	if _, ok := profiles[Kind(s)]; ok {
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Scoring turns one side's rolls into an effective score for a kind and mode.
type Scoring struct {
	Mode      Mode
	Threshold int
}

// ScoringFor returns the scoring for a kind/mode pair.
func ScoringFor(k Kind, m Mode) Scoring {
	return Scoring{Mode: m, Threshold: profiles[k].Threshold}
}

// Score computes the effective score. A zero threshold means every roll counts.
func (s Scoring) Score(rolls []int) int {
	if len(rolls) == 0 {
		return 0
	}
	switch s.Mode {
	case Crazy:
		if s.Threshold > 0 {
			if rolls[0] == 1 {
				return 1
			}
			return 0
		}
		return 7 - rolls[0]
	case Double:
		total := 0
		for _, r := range rolls {
			if r >= s.Threshold {
				total += r
			}
		}
		return total
	default:
		if rolls[0] >= s.Threshold {
			return rolls[0]
		}
		return 0
	}
}

// Award returns the side (0 or 1) taking the point, or -1 for no point.
func (r Rule) Award(score1, score2 int) int {
	switch r {
	case Exclusive:
		switch {
		case score1 > 0 && score2 == 0:
			return 0
		case score2 > 0 && score1 == 0:
			return 1
		}
	default:
		switch {
		case score1 > score2:
			return 0
		case score2 > score1:
			return 1
		}
	}
	return -1
}

// Resolve scores both sides of a round and returns the effective scores and
// the side taking the point.
func Resolve(k Kind, m Mode, rolls1, rolls2 []int) (score1, score2, point int) {
	sc := ScoringFor(k, m)
	score1, score2 = sc.Score(rolls1), sc.Score(rolls2)
	return score1, score2, profiles[k].Rule.Award(score1, score2)
}

// Describe returns the one-line rule text for a kind/mode pair.
func Describe(k Kind, m Mode) string {
	prof := profiles[k]
	if prof.Rule == Exclusive {
		switch m {
		case Double:
			return fmt.Sprintf("Two attempts each, only rolls of %d+ count. Score while your opponent misses to win the round.", prof.Threshold)
		case Crazy:
			return "One attempt each, only the worst outcome (1) counts. Be the only one to hit it to win the round."
		default:
			return fmt.Sprintf("One attempt each, rolls of %d+ count. Score while your opponent misses to win the round.", prof.Threshold)
		}
	}
	switch m {
	case Double:
		return "Two rolls each, the highest sum wins the round."
	case Crazy:
		return "One roll each, the lowest number wins the round (6 counts as 1, 1 as 6)."
	default:
		return "One roll each, the highest number wins the round."
	}
}
