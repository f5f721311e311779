package bindings

import (
	"context"
	"fmt"

	"github.com/MJE43/roulette-table-go/internal/scripting"
	"github.com/MJE43/roulette-table-go/internal/table"
)

// scriptPlacer adapts App to scripting.TurnPlacer so autoplay scripts bet
// against the live session.
type scriptPlacer struct {
	app *App
}

func (p scriptPlacer) PlayTurn(ctx context.Context, bet int, selections []string) (table.Turn, error) {
	a := p.app
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return table.Turn{}, fmt.Errorf("no active session")
	}
	// Script turns skip the output buffer; they go to the spin store and
	// the UI tails it.
	turn := a.session.PlayTurn(bet, selections)
	if turn.Accepted {
		a.recordSpin(turn)
	}
	return turn, nil
}

func (p scriptPlacer) Bankroll() int {
	a := p.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return 0
	}
	return a.session.Bankroll()
}

// StatsSnapshot copies the session statistics while holding the app lock so
// script snapshots never alias state a GUI turn is updating.
func (p scriptPlacer) StatsSnapshot() table.Statistics {
	a := p.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return table.Statistics{}
	}
	return *a.session.Stats()
}

func (p scriptPlacer) ResetStats() {
	a := p.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return
	}
	a.session.Stats().Reset()
}

// RunScript starts an autoplay script against the active session.
func (a *App) RunScript(source string) error {
	a.mu.Lock()
	hasSession := a.session != nil
	a.mu.Unlock()

	if !hasSession {
		return fmt.Errorf("start the game before running a script")
	}
	return a.script.Start(source)
}

// StopScript stops a running script and waits for it to exit.
func (a *App) StopScript() {
	a.script.Stop()
}

// ScriptSnapshot returns the script engine state for the UI.
func (a *App) ScriptSnapshot() scripting.Snapshot {
	return a.script.GetSnapshot()
}
