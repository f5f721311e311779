package scripting

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MJE43/roulette-table-go/internal/table"
)

// fakePlacer plays scripted turns without a real wheel.
type fakePlacer struct {
	mu       sync.Mutex
	bankroll int
	stats    *table.Statistics
	results  []bool // win/lose per turn, cycles
	turn     int
	bets     []int
	reject   string // when set, every turn is rejected with this reason
}

func newFakePlacer(bankroll int, results []bool) *fakePlacer {
	return &fakePlacer{
		bankroll: bankroll,
		stats:    table.NewStatistics(bankroll),
		results:  results,
	}
}

func (p *fakePlacer) PlayTurn(ctx context.Context, bet int, selections []string) (table.Turn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reject != "" {
		return table.Turn{Accepted: false, Reason: p.reject}, nil
	}
	if bet > p.bankroll {
		return table.Turn{Accepted: false, Reason: "insufficient_funds"}, nil
	}

	won := p.results[p.turn%len(p.results)]
	p.turn++
	p.bets = append(p.bets, bet)

	p.bankroll -= bet
	payout := 0
	if won {
		payout = bet * 36
		p.bankroll += payout
	}
	p.stats.RecordTurn(bet, payout, won)
	return table.Turn{Accepted: true, Bet: bet, Won: won, Payout: payout}, nil
}

func (p *fakePlacer) Bankroll() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bankroll
}

func (p *fakePlacer) StatsSnapshot() table.Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.stats
}

func (p *fakePlacer) ResetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Reset()
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *fakeEmitter) Emit(event string, data any) {
	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()
}

func (e *fakeEmitter) has(event string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range e.events {
		if ev == event {
			return true
		}
	}
	return false
}

func waitForDone(t *testing.T, e *Engine) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := e.GetSnapshot()
		if snap.State != StateRunning {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("engine did not finish in time")
	return Snapshot{}
}

func TestScriptStopsItself(t *testing.T) {
	placer := newFakePlacer(1000, []bool{false})
	engine := NewEngine(placer, &fakeEmitter{})

	script := `
		var turns = 0;
		function dobet() {
			turns++;
			if (turns >= 5) {
				stop();
			}
		}
	`
	if err := engine.Start(script); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := waitForDone(t, engine)
	if snap.State != StateStopped {
		t.Fatalf("state = %q (err %q), want stopped", snap.State, snap.Error)
	}
	if placer.turn != 5 {
		t.Errorf("turns played = %d, want 5", placer.turn)
	}
}

func TestMartingaleDoublesOnLoss(t *testing.T) {
	placer := newFakePlacer(10000, []bool{false, false, false, true})
	engine := NewEngine(placer, &fakeEmitter{})

	script := `
		nextbet = 1;
		stoponwin = true;
		function dobet() {
			if (win) {
				nextbet = basebet;
			} else {
				nextbet = previousbet * 2;
			}
		}
	`
	if err := engine.Start(script); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := waitForDone(t, engine)
	if snap.State != StateStopped {
		t.Fatalf("state = %q (err %q), want stopped", snap.State, snap.Error)
	}

	want := []int{1, 2, 4, 8}
	if len(placer.bets) != len(want) {
		t.Fatalf("bets = %v, want %v", placer.bets, want)
	}
	for i, b := range want {
		if placer.bets[i] != b {
			t.Errorf("bet %d = %d, want %d", i, placer.bets[i], b)
		}
	}
}

func TestRejectedTurnStopsScript(t *testing.T) {
	placer := newFakePlacer(1000, []bool{false})
	placer.reject = "invalid_selections"
	engine := NewEngine(placer, &fakeEmitter{})

	script := `function dobet() {}`
	if err := engine.Start(script); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := waitForDone(t, engine)
	if snap.State != StateError {
		t.Fatalf("state = %q, want error", snap.State)
	}
	if !strings.Contains(snap.Error, "invalid_selections") {
		t.Errorf("error = %q, want rejection reason", snap.Error)
	}
}

func TestNonPositiveBetStopsScript(t *testing.T) {
	placer := newFakePlacer(1000, []bool{false})
	engine := NewEngine(placer, &fakeEmitter{})

	script := `function dobet() { nextbet = 0; }`
	if err := engine.Start(script); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := waitForDone(t, engine)
	if snap.State != StateError {
		t.Fatalf("state = %q, want error", snap.State)
	}
	if !strings.Contains(snap.Error, "nextbet") {
		t.Errorf("error = %q, want nextbet message", snap.Error)
	}
}

func TestMissingDobetIsError(t *testing.T) {
	placer := newFakePlacer(1000, []bool{false})
	engine := NewEngine(placer, &fakeEmitter{})

	if err := engine.Start(`var x = 1;`); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := waitForDone(t, engine)
	if snap.State != StateError {
		t.Fatalf("state = %q, want error", snap.State)
	}
	if !strings.Contains(snap.Error, "dobet") {
		t.Errorf("error = %q, want dobet message", snap.Error)
	}
}

func TestCompileErrorReportedAtStart(t *testing.T) {
	placer := newFakePlacer(1000, []bool{false})
	engine := NewEngine(placer, &fakeEmitter{})

	if err := engine.Start(`function dobet( {`); err == nil {
		t.Fatal("Start accepted a script with a syntax error")
	}
	if engine.GetSnapshot().State != StateError {
		t.Errorf("state = %q, want error", engine.GetSnapshot().State)
	}
}

func TestStopFromOutside(t *testing.T) {
	placer := newFakePlacer(1_000_000, []bool{false})
	engine := NewEngine(placer, &fakeEmitter{})

	script := `function dobet() { sleep(20); }`
	if err := engine.Start(script); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	engine.Stop()

	snap := engine.GetSnapshot()
	if snap.State != StateStopped {
		t.Errorf("state = %q, want stopped", snap.State)
	}
}

func TestSelectionChangeFromScript(t *testing.T) {
	placer := newFakePlacer(1000, []bool{false})
	engine := NewEngine(placer, &fakeEmitter{})

	script := `
		var turns = 0;
		function dobet() {
			turns++;
			numbers = ["00", 17, 34];
			if (turns >= 2) stop();
		}
	`
	if err := engine.Start(script); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForDone(t, engine)

	got := engine.vars.Numbers
	want := []string{"00", "17", "34"}
	if len(got) != len(want) {
		t.Fatalf("numbers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("numbers[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResetStats(t *testing.T) {
	placer := newFakePlacer(1000, []bool{false})
	engine := NewEngine(placer, &fakeEmitter{})

	script := `
		var turns = 0;
		function dobet() {
			turns++;
			if (turns == 3) resetstats();
			if (turns >= 3) stop();
		}
	`
	if err := engine.Start(script); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForDone(t, engine)

	if placer.stats.Bets != 0 {
		t.Errorf("stats.Bets = %d after resetstats, want 0", placer.stats.Bets)
	}
	snap := engine.GetSnapshot()
	if len(snap.Chart) != 0 {
		t.Errorf("chart has %d points after resetstats, want 0", len(snap.Chart))
	}
}

func TestSnapshotStatsCopiedWhileRunning(t *testing.T) {
	placer := newFakePlacer(1_000_000, []bool{false})
	engine := NewEngine(placer, &fakeEmitter{})

	script := `
		var turns = 0;
		function dobet() {
			turns++;
			if (turns >= 50) stop();
		}
	`
	if err := engine.Start(script); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Poll snapshots while the bet loop is recording turns. The bet count
	// must never run backwards across snapshots.
	deadline := time.Now().Add(5 * time.Second)
	last := 0
	for {
		snap := engine.GetSnapshot()
		if snap.Stats.Bets < last {
			t.Fatalf("snapshot bets went backwards: %d then %d", last, snap.Stats.Bets)
		}
		last = snap.Stats.Bets
		if snap.State != StateRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("engine did not finish in time")
		}
	}

	// Snapshots carry copies, so mutating one must not leak back.
	snap := engine.GetSnapshot()
	snap.Stats.Bets = 999
	if got := engine.GetSnapshot().Stats.Bets; got != 50 {
		t.Errorf("bets = %d after mutating a snapshot, want 50", got)
	}
}

func TestFinishedEventEmitted(t *testing.T) {
	placer := newFakePlacer(1000, []bool{false})
	emitter := &fakeEmitter{}
	engine := NewEngine(placer, emitter)

	if err := engine.Start(`function dobet() { stop(); }`); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForDone(t, engine)

	if !emitter.has("script:finished") {
		t.Error("script:finished event not emitted")
	}
}

func TestScriptLogging(t *testing.T) {
	placer := newFakePlacer(1000, []bool{false})
	engine := NewEngine(placer, &fakeEmitter{})

	script := `
		function dobet() {
			log("balance is", balance);
			stop();
		}
	`
	if err := engine.Start(script); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := waitForDone(t, engine)

	if len(snap.Logs) != 1 {
		t.Fatalf("logs = %d entries, want 1", len(snap.Logs))
	}
	if !strings.Contains(snap.Logs[0].Message, "balance is") {
		t.Errorf("log message = %q", snap.Logs[0].Message)
	}
}
