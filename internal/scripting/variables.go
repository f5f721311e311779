package scripting

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/MJE43/roulette-table-go/internal/table"
)

// Variables holds the global variable state shared between the engine and
// user scripts. Bets and balances are whole dollars, matching the table.
type Variables struct {
	Balance     int  `json:"balance"`
	NextBet     int  `json:"nextbet"`
	BaseBet     int  `json:"basebet"`
	PreviousBet int  `json:"previousbet"`
	Win         bool `json:"win"`
	Running     bool `json:"running"`

	// Selection tokens for the next turn: "00" or "1".."36".
	Numbers []string `json:"numbers"`

	// Statistics copy, refreshed by the engine after every turn.
	Stats table.Statistics `json:"-"`

	// Control
	StopOnWin bool `json:"stoponwin"`
	SleepTime int  `json:"sleeptime"`
}

// NewVariables creates a Variables with defaults: a $1 bet on a single
// number.
func NewVariables(stats table.Statistics, balance int) *Variables {
	return &Variables{
		Stats:   stats,
		Balance: balance,
		NextBet: 1,
		BaseBet: 1,
		Numbers: []string{"17"},
	}
}

// injectVariables sets all script-visible globals on the JS runtime.
// Read-only semantics are enforced in syncFromVM rather than at the JS
// property level.
func injectVariables(vm *goja.Runtime, vars *Variables) {
	// Core betting variables
	vm.Set("balance", vars.Balance)
	vm.Set("nextbet", vars.NextBet)
	vm.Set("basebet", vars.BaseBet)
	vm.Set("previousbet", vars.PreviousBet)
	vm.Set("win", vars.Win)
	vm.Set("running", vars.Running)

	// Selections
	vm.Set("numbers", vars.Numbers)

	// Statistics aliases
	vm.Set("bets", vars.Stats.Bets)
	vm.Set("betcount", vars.Stats.Bets)
	vm.Set("wins", vars.Stats.Wins)
	vm.Set("losses", vars.Stats.Losses)
	vm.Set("winstreak", vars.Stats.WinStreak)
	vm.Set("losestreak", vars.Stats.LoseStreak)
	vm.Set("currentstreak", vars.Stats.CurrentStreak)
	vm.Set("profit", vars.Stats.Profit)
	vm.Set("wagered", vars.Stats.Wagered)
	vm.Set("started_bal", vars.Stats.StartBankroll)

	// Control
	vm.Set("stoponwin", vars.StopOnWin)
	vm.Set("sleeptime", vars.SleepTime)
}

// syncFromVM reads mutable variables back from the JS runtime into vars.
// Only variables that scripts are allowed to modify are synced.
func syncFromVM(vm *goja.Runtime, vars *Variables) {
	vars.NextBet = toInt(vm.Get("nextbet"))
	vars.BaseBet = toInt(vm.Get("basebet"))
	vars.Numbers = toStringSlice(vm, vm.Get("numbers"))
	vars.StopOnWin = toBool(vm.Get("stoponwin"))
	vars.SleepTime = toInt(vm.Get("sleeptime"))
}

// --- Conversion helpers ---

func toInt(v goja.Value) int {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	return int(v.ToInteger())
}

func toBool(v goja.Value) bool {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false
	}
	return v.ToBoolean()
}

func toStringSlice(vm *goja.Runtime, v goja.Value) []string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj := v.ToObject(vm)
	if obj == nil {
		return nil
	}
	lengthVal := obj.Get("length")
	if lengthVal == nil || goja.IsUndefined(lengthVal) {
		return nil
	}
	length := int(lengthVal.ToInteger())
	result := make([]string, length)
	for i := 0; i < length; i++ {
		val := obj.Get(fmt.Sprintf("%d", i))
		if val != nil && !goja.IsUndefined(val) {
			result[i] = val.String()
		}
	}
	return result
}
