package bindings

import "fmt"

// FairnessInfo is the provably fair commitment for the active session.
type FairnessInfo struct {
	ServerSeedHash string `json:"serverSeedHash"`
	ClientSeed     string `json:"clientSeed"`
	Active         bool   `json:"active"`
}

// Fairness returns the seed commitment for the current session. The plain
// server seed is never included while the session is live.
func (a *App) Fairness() FairnessInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return FairnessInfo{
		ServerSeedHash: a.seedHash,
		ClientSeed:     a.clientSeed,
		Active:         a.session != nil,
	}
}

// SetClientSeed sets the client seed used for the next game. It does not
// affect a session already in progress.
func (a *App) SetClientSeed(seed string) error {
	if seed == "" {
		return fmt.Errorf("client seed must not be empty")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clientSeed = seed
	return nil
}

// RevealServerSeed returns the plain server seed of the previous session so
// the player can verify its spins against the committed hash. The seed for
// the live session stays secret until the next game starts.
func (a *App) RevealServerSeed() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.prevServerSeed == "" {
		return "", fmt.Errorf("no finished session to reveal")
	}
	return a.prevServerSeed, nil
}
