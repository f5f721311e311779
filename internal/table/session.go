// Package table holds the single-table roulette engine: one Session owns
// the bankroll, spin count, and spin history for the life of a game.
package table

import (
	"fmt"
	"strings"

	"github.com/MJE43/roulette-table-go/internal/games"
)

// Wheel produces one pocket per spin, each in [0, 38): 0-36 plus 37 for
// "00". Injected so tests and replays can force outcomes.
type Wheel interface {
	NextPocket() int
}

// Rejection reasons carried on Turn when a bet is refused. Rejected turns
// never touch bankroll, spin count, or history.
const (
	RejectInvalidSelections = "invalid_selections"
	RejectInsufficientFunds = "insufficient_funds"
)

// Turn is the structured result of one PlayTurn call. Lines carries the
// player-facing text in emission order; presentation layers render it
// verbatim and the autoplay engine reads the structured fields.
type Turn struct {
	Accepted bool     `json:"accepted"`
	Reason   string   `json:"reason,omitempty"`
	Bet      int      `json:"bet"`
	Pocket   int      `json:"pocket"`
	Won      bool     `json:"won"`
	Payout   int      `json:"payout"`
	Lines    []string `json:"lines"`
}

// Session is a single roulette game: bankroll, spin count, and spin
// history, plus per-session statistics. It is not safe for concurrent use;
// one player drives it synchronously.
type Session struct {
	bankroll  int
	spinCount int
	history   []int
	wheel     Wheel
	stats     *Statistics
}

// NewSession starts a game with the given bankroll. The wheel supplies
// every spin outcome.
func NewSession(bankroll int, wheel Wheel) *Session {
	return &Session{
		bankroll: bankroll,
		wheel:    wheel,
		stats:    NewStatistics(bankroll),
	}
}

// Bankroll returns the player's current funds.
func (s *Session) Bankroll() int { return s.bankroll }

// SpinCount returns the number of resolved spins.
func (s *Session) SpinCount() int { return s.spinCount }

// History returns the spin outcomes in chronological order.
func (s *Session) History() []int {
	out := make([]int, len(s.history))
	copy(out, s.history)
	return out
}

// Stats returns the session statistics tracker.
func (s *Session) Stats() *Statistics { return s.stats }

// PlayTurn resolves one bet against a fresh spin. The selection-set size
// must be one of 1, 2, 3, 4, 6, 12, or 18 and the bet must be affordable;
// otherwise the turn is rejected with no state change. The bet is deducted
// before the spin resolves, so it is spent regardless of outcome.
func (s *Session) PlayTurn(bet int, selections []string) Turn {
	multiplier, ok := games.PayoutMultiplier(len(selections))
	if !ok {
		return Turn{
			Reason: RejectInvalidSelections,
			Bet:    bet,
			Lines:  []string{"Invalid number of selections. Try 1, 2, 3, 4, 6, 12, or 18 numbers."},
		}
	}

	if s.bankroll < bet {
		return Turn{
			Reason: RejectInsufficientFunds,
			Bet:    bet,
			Lines:  []string{"You do not have enough money to make this bet."},
		}
	}

	s.bankroll -= bet
	pocket := s.wheel.NextPocket()
	s.spinCount++
	s.history = append(s.history, pocket)

	label := games.PocketLabel(pocket)
	turn := Turn{
		Accepted: true,
		Bet:      bet,
		Pocket:   pocket,
		Lines: []string{
			"",
			"The ball landed on: " + label,
			fmt.Sprintf("Bank Roll = $%d", s.bankroll),
			fmt.Sprintf("Spin Count = %d", s.spinCount),
		},
	}

	if games.Matches(pocket, selections) {
		payout := bet * multiplier
		s.bankroll += payout
		turn.Won = true
		turn.Payout = payout
		turn.Lines = append(turn.Lines,
			fmt.Sprintf("You picked the winning number %s and win $%d", label, payout))
	} else {
		turn.Lines = append(turn.Lines, "You did not pick the winning number.")
	}

	s.stats.RecordTurn(bet, turn.Payout, turn.Won)
	return turn
}

// Summary reports total spins, final bankroll, and the full spin history in
// chronological order, with 37 rendered as "00".
func (s *Session) Summary() []string {
	labels := make([]string, len(s.history))
	for i, p := range s.history {
		labels[i] = games.PocketLabel(p)
	}
	return []string{
		"",
		"Game Summary:",
		fmt.Sprintf("Total spins: %d", s.spinCount),
		fmt.Sprintf("Final bankroll: $%d", s.bankroll),
		"Spin results: " + strings.Join(labels, ", "),
	}
}
