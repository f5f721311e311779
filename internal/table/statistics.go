package table

import "github.com/shopspring/decimal"

// Statistics tracks session-level betting statistics: counts, streaks, and
// whole-dollar totals. Amounts stay integers like the bankroll; ratios are
// computed with decimals to keep reports exact.
type Statistics struct {
	Bets    int   `json:"bets"`
	Wins    int   `json:"wins"`
	Losses  int   `json:"losses"`
	Wagered int64 `json:"wagered"`
	Paid    int64 `json:"paid"`
	Profit  int64 `json:"profit"`

	StartBankroll int `json:"startBankroll"`

	WinStreak  int `json:"winStreak"`
	LoseStreak int `json:"loseStreak"`
	// Positive = win streak, negative = lose streak.
	CurrentStreak int `json:"currentStreak"`

	HighestStreak int   `json:"highestStreak"`
	LowestStreak  int   `json:"lowestStreak"`
	HighestBet    int   `json:"highestBet"`
	HighestProfit int64 `json:"highestProfit"`
	LowestProfit  int64 `json:"lowestProfit"`
}

// NewStatistics creates a Statistics anchored at the starting bankroll.
func NewStatistics(startBankroll int) *Statistics {
	return &Statistics{StartBankroll: startBankroll}
}

// Reset clears all counters.
func (s *Statistics) Reset() {
	start := s.StartBankroll
	*s = Statistics{StartBankroll: start}
}

// RecordTurn processes one accepted turn. payout is 0 on a loss.
func (s *Statistics) RecordTurn(bet, payout int, won bool) {
	s.Bets++
	s.Wagered += int64(bet)
	s.Paid += int64(payout)
	s.Profit += int64(payout) - int64(bet)

	if won {
		s.Wins++
		s.WinStreak++
		s.LoseStreak = 0
		s.CurrentStreak = s.WinStreak
	} else {
		s.Losses++
		s.LoseStreak++
		s.WinStreak = 0
		s.CurrentStreak = -s.LoseStreak
	}

	if bet > s.HighestBet {
		s.HighestBet = bet
	}
	if s.Profit > s.HighestProfit {
		s.HighestProfit = s.Profit
	}
	if s.Profit < s.LowestProfit {
		s.LowestProfit = s.Profit
	}
	if s.CurrentStreak > s.HighestStreak {
		s.HighestStreak = s.CurrentStreak
	}
	if s.CurrentStreak < s.LowestStreak {
		s.LowestStreak = s.CurrentStreak
	}
}

// ReturnToPlayer is total paid out over total wagered, as a percentage.
// Zero when nothing has been wagered.
func (s *Statistics) ReturnToPlayer() decimal.Decimal {
	if s.Wagered == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(s.Paid).
		Div(decimal.NewFromInt(s.Wagered)).
		Mul(decimal.NewFromInt(100))
}

// ProfitPercent is net profit relative to the starting bankroll, as a
// percentage. Zero when the session started broke.
func (s *Statistics) ProfitPercent() decimal.Decimal {
	if s.StartBankroll == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(s.Profit).
		Div(decimal.NewFromInt(int64(s.StartBankroll))).
		Mul(decimal.NewFromInt(100))
}
