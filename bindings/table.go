package bindings

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/MJE43/roulette-table-go/internal/engine"
	"github.com/MJE43/roulette-table-go/internal/games"
	"github.com/MJE43/roulette-table-go/internal/spinstore"
	"github.com/MJE43/roulette-table-go/internal/table"
)

// StartGame begins a new session from the bankroll field text. A fresh
// session clears the output area; a bad bankroll leaves any existing
// session untouched.
func (a *App) StartGame(bankroll string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	amount, err := strconv.Atoi(strings.TrimSpace(bankroll))
	if err != nil || amount < 0 {
		a.appendOutput("Please enter a valid number for bankroll.")
		return a.outputCopy()
	}

	serverSeed, err := engine.NewServerSeed()
	if err != nil {
		a.appendOutput("Could not start the game. Please try again.")
		return a.outputCopy()
	}
	a.prevServerSeed = a.serverSeed
	a.serverSeed = serverSeed
	a.seedHash = engine.HashServerSeed(serverSeed)

	a.session = table.NewSession(amount, a.newWheel(serverSeed, a.clientSeed))
	a.sessionID = uuid.Nil
	a.output = a.output[:0]
	a.appendOutput(fmt.Sprintf("Game started with bankroll: $%d", amount))

	if st := a.store(); st != nil {
		id, err := st.CreateSession(a.reqCtx(), a.seedHash, a.clientSeed, int64(amount))
		if err != nil {
			log.Printf("[bindings] create session record: %v", err)
		} else {
			a.sessionID = id
		}
	}
	return a.outputCopy()
}

// PlayTurn validates the bet and number fields, then plays one turn.
func (a *App) PlayTurn(bet string, numbers string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		a.appendOutput("Please start the game first.")
		return a.outputCopy()
	}

	amount, err := strconv.Atoi(strings.TrimSpace(bet))
	if err != nil || amount < 0 {
		a.appendOutput("Please enter a valid number for the bet.")
		return a.outputCopy()
	}

	selections, errLine := parseSelections(numbers)
	if errLine != "" {
		a.appendOutput(errLine)
		return a.outputCopy()
	}
	if _, ok := games.PayoutMultiplier(len(selections)); !ok {
		a.appendOutput(fmt.Sprintf("Invalid number of selections (%d). Please select 1, 2, 3, 4, 6, 12, or 18 numbers.", len(selections)))
		return a.outputCopy()
	}

	turn := a.session.PlayTurn(amount, selections)
	a.appendOutput(turn.Lines...)
	if turn.Accepted {
		a.recordSpin(turn)
	}
	return a.outputCopy()
}

// ShowSummary appends the game summary to the output. Without a session it
// does nothing.
func (a *App) ShowSummary() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return a.outputCopy()
	}
	a.appendOutput(a.session.Summary()...)
	return a.outputCopy()
}

// StatsView carries session statistics plus derived ratios for the UI.
type StatsView struct {
	table.Statistics
	ReturnToPlayer string `json:"returnToPlayer"`
	ProfitPercent  string `json:"profitPercent"`
}

// SessionStats returns statistics for the active session, or a zero view.
func (a *App) SessionStats() StatsView {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return StatsView{ReturnToPlayer: "0", ProfitPercent: "0"}
	}
	stats := a.session.Stats()
	return StatsView{
		Statistics:     *stats,
		ReturnToPlayer: stats.ReturnToPlayer().StringFixed(2),
		ProfitPercent:  stats.ProfitPercent().StringFixed(2),
	}
}

// parseSelections splits the raw numbers field into selection tokens.
// Returns a player-facing error line when a token is invalid.
func parseSelections(raw string) ([]string, string) {
	parts := strings.Split(raw, ",")
	selections := make([]string, 0, len(parts))
	for _, part := range parts {
		tok := strings.TrimSpace(part)
		if tok == "00" {
			selections = append(selections, tok)
			continue
		}
		if !games.IsDigits(tok) {
			return nil, fmt.Sprintf("Invalid input: '%s'. Only digits and '00' are allowed.", tok)
		}
		n, _ := strconv.Atoi(tok)
		if n < 1 || n > 36 {
			return nil, fmt.Sprintf("Invalid number: %d. Please enter numbers between 1 and 36 or '00'.", n)
		}
		selections = append(selections, tok)
	}
	return selections, ""
}

// recordSpin writes an accepted turn to the spin store and raises the UI
// event. Recording failures are logged, not surfaced to the player.
// Callers hold a.mu.
func (a *App) recordSpin(turn table.Turn) {
	st := a.store()
	if st == nil || a.sessionID == uuid.Nil {
		return
	}
	spin := spinstore.Spin{
		Nonce:  int64(a.session.SpinCount()),
		Pocket: turn.Pocket,
		Bet:    int64(turn.Bet),
		Payout: int64(turn.Payout),
		Won:    turn.Won,
	}
	if err := st.RecordSpin(a.reqCtx(), a.sessionID, spin); err != nil {
		log.Printf("[bindings] record spin: %v", err)
		return
	}
	a.tables.EmitNewSpins(a.sessionID)
}
