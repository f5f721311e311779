package scripting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MJE43/roulette-table-go/internal/table"
)

// State represents the engine lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateError   State = "error"
)

// TurnPlacer plays turns against the live table session. The bindings layer
// implements this over the current session and the spin recorder.
// StatsSnapshot returns a copy taken under the placer's lock so the engine
// never reads statistics the table is still mutating.
type TurnPlacer interface {
	PlayTurn(ctx context.Context, bet int, selections []string) (table.Turn, error)
	Bankroll() int
	StatsSnapshot() table.Statistics
	ResetStats()
}

// EventEmitter publishes engine events to the UI.
type EventEmitter interface {
	Emit(event string, data any)
}

// ChartPoint is a single point on the profit chart.
type ChartPoint struct {
	BetNumber int   `json:"betNumber"`
	Profit    int64 `json:"profit"`
	Win       bool  `json:"win"`
}

// Engine drives dobet() in a loop against a TurnPlacer.
type Engine struct {
	mu sync.Mutex

	state  State
	endErr error

	vm    *VM
	vars  *Variables
	chart []ChartPoint

	placer  TurnPlacer
	emitter EventEmitter

	cancel context.CancelFunc
	done   chan struct{}

	maxChartPoints int
	lastEmit       time.Time
}

// NewEngine creates an idle engine.
func NewEngine(placer TurnPlacer, emitter EventEmitter) *Engine {
	return &Engine{
		state:          StateIdle,
		placer:         placer,
		emitter:        emitter,
		maxChartPoints: 5000,
	}
}

// Snapshot is the engine state exposed to the UI. Stats is a copy; mutating
// it has no effect on the running session.
type Snapshot struct {
	State   State            `json:"state"`
	Error   string           `json:"error,omitempty"`
	Stats   table.Statistics `json:"stats"`
	Chart   []ChartPoint     `json:"chart"`
	Logs    []LogEntry       `json:"logs"`
	NextBet int              `json:"nextbet"`
}

// Start compiles the script and launches the bet loop. Returns an error if
// a run is already in progress or the script fails to compile.
func (e *Engine) Start(source string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		return fmt.Errorf("script already running")
	}

	e.vm = NewVM()
	e.vars = NewVariables(e.placer.StatsSnapshot(), e.placer.Bankroll())
	e.vars.Running = true

	// Inject defaults first so top-level script assignments override them,
	// then pull the result back.
	e.vm.SetVariables(e.vars)
	if err := e.vm.Execute(source); err != nil {
		e.state = StateError
		e.endErr = err
		return err
	}
	e.vm.SyncVariables(e.vars)

	e.chart = e.chart[:0]
	e.endErr = nil
	e.state = StateRunning

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.betLoop(ctx, e.vm, e.vars, e.done)
	return nil
}

// Stop cancels a running script and waits for the loop to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	<-done
}

// GetSnapshot returns the current state, stats, chart, and logs.
func (e *Engine) GetSnapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		State: e.state,
		Stats: e.placer.StatsSnapshot(),
	}
	if e.endErr != nil {
		snap.Error = e.endErr.Error()
	}
	if e.vars != nil {
		snap.NextBet = e.vars.NextBet
	}
	snap.Chart = make([]ChartPoint, len(e.chart))
	copy(snap.Chart, e.chart)
	if e.vm != nil {
		snap.Logs = e.vm.GetLogs()
	}
	return snap
}

func (e *Engine) betLoop(ctx context.Context, vm *VM, vars *Variables, done chan struct{}) {
	defer close(done)

	endState := StateStopped
	var endErr error

	for {
		select {
		case <-ctx.Done():
			e.finish(endState, endErr)
			return
		default:
		}

		e.mu.Lock()
		bet := vars.NextBet
		e.mu.Unlock()

		if bet <= 0 {
			endState, endErr = StateError, fmt.Errorf("nextbet must be positive, got %d", bet)
			break
		}

		turn, err := e.placer.PlayTurn(ctx, bet, vars.Numbers)
		if err != nil {
			endState, endErr = StateError, fmt.Errorf("play turn: %w", err)
			break
		}
		if !turn.Accepted {
			// A rejected turn will reject forever; stop instead of spinning.
			endState, endErr = StateError, fmt.Errorf("bet rejected: %s", turn.Reason)
			break
		}

		balance := e.placer.Bankroll()
		stats := e.placer.StatsSnapshot()

		e.mu.Lock()
		vars.PreviousBet = bet
		vars.Win = turn.Won
		vars.Balance = balance
		vars.Stats = stats
		if len(e.chart) >= e.maxChartPoints {
			e.chart = e.chart[1:]
		}
		e.chart = append(e.chart, ChartPoint{
			BetNumber: stats.Bets,
			Profit:    stats.Profit,
			Win:       turn.Won,
		})
		e.mu.Unlock()

		vm.SetVariables(vars)
		if err := vm.CallDobet(); err != nil {
			endState, endErr = StateError, err
			break
		}
		e.mu.Lock()
		vm.SyncVariables(vars)
		stopOnWin := vars.StopOnWin
		e.mu.Unlock()

		if vm.IsResetStatsRequested() {
			e.placer.ResetStats()
			fresh := e.placer.StatsSnapshot()
			e.mu.Lock()
			e.chart = e.chart[:0]
			vars.Stats = fresh
			e.mu.Unlock()
		}

		if vm.IsStopRequested() {
			break
		}
		if stopOnWin && turn.Won {
			break
		}

		e.maybeEmit()

		if sleep := vm.GetSleepTime(); sleep > 0 {
			vm.ResetSleepTime()
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(sleep) * time.Millisecond):
			}
		}
	}

	e.finish(endState, endErr)
}

func (e *Engine) finish(state State, err error) {
	e.mu.Lock()
	e.state = state
	e.endErr = err
	if e.vars != nil {
		e.vars.Running = false
	}
	e.mu.Unlock()

	if e.emitter != nil {
		data := map[string]any{"state": string(state)}
		if err != nil {
			data["error"] = err.Error()
		}
		e.emitter.Emit("script:finished", data)
	}
}

// maybeEmit publishes a progress event at most every 250ms.
func (e *Engine) maybeEmit() {
	if e.emitter == nil {
		return
	}
	e.mu.Lock()
	now := time.Now()
	if now.Sub(e.lastEmit) < 250*time.Millisecond {
		e.mu.Unlock()
		return
	}
	e.lastEmit = now
	stats := e.placer.StatsSnapshot()
	data := map[string]any{
		"bets":   stats.Bets,
		"profit": stats.Profit,
	}
	e.mu.Unlock()
	e.emitter.Emit("script:progress", data)
}
