package games

import (
	"math"
	"strconv"
	"strings"

	"github.com/MJE43/roulette-table-go/internal/engine"
)

// PocketCount is the number of pockets on an American double-zero wheel:
// 0-36 plus "00".
const PocketCount = 38

// DoubleZero is the sentinel pocket for "00", distinct from pocket 0.
const DoubleZero = 37

// payoutMultipliers maps selection-set size to payout multiplier.
// Any size not present is an invalid bet.
var payoutMultipliers = map[int]int{
	1:  36,
	2:  18,
	3:  12,
	4:  9,
	6:  6,
	12: 3,
	18: 2,
}

// PayoutMultiplier returns the multiplier for a selection-set size.
// ok is false for sizes that are not a valid bet.
func PayoutMultiplier(count int) (multiplier int, ok bool) {
	m, ok := payoutMultipliers[count]
	return m, ok
}

// Pocket maps a float in [0, 1) to a pocket on the wheel.
func Pocket(f float64) int {
	return int(math.Floor(f * PocketCount))
}

// PocketLabel renders a pocket for display: 37 shows as "00".
func PocketLabel(pocket int) string {
	if pocket == DoubleZero {
		return "00"
	}
	return strconv.Itoa(pocket)
}

// IsDigits reports whether s is a non-empty base-10 digit string.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Matches reports whether a pocket matches one of the selection tokens.
// Tokens are trimmed before comparison. The double-zero pocket matches the
// literal "00"; digit strings also match their integer value, so "00" reads
// as 0 and "37" as 37 in the numeric branch.
func Matches(pocket int, selections []string) bool {
	for _, s := range selections {
		s = strings.TrimSpace(s)
		if pocket == DoubleZero && s == "00" {
			return true
		}
		if IsDigits(s) {
			if n, err := strconv.Atoi(s); err == nil && pocket == n {
				return true
			}
		}
	}
	return false
}

// FairWheel draws pockets from the provably-fair float stream. Each spin
// consumes one float at nonce = spin number, so a session is fully
// reproducible from its seed pair.
type FairWheel struct {
	serverSeed string
	clientSeed string
	nonce      uint64
}

// NewFairWheel creates a wheel for the given seed pair. The nonce starts at
// 1 for the first spin.
func NewFairWheel(serverSeed, clientSeed string) *FairWheel {
	return &FairWheel{
		serverSeed: serverSeed,
		clientSeed: clientSeed,
	}
}

// NextPocket draws the next pocket and advances the nonce.
func (w *FairWheel) NextPocket() int {
	w.nonce++
	f := engine.Floats(w.serverSeed, w.clientSeed, w.nonce, 0, 1)[0]
	return Pocket(f)
}

// Nonce returns the number of spins drawn so far.
func (w *FairWheel) Nonce() uint64 { return w.nonce }
