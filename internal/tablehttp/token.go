package tablehttp

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const tokenAccount = "api-token"

// TokenStore keeps the local API token in the OS keychain with an optional
// file fallback. Fallback is intended for environments where no system
// keyring is available.
type TokenStore struct {
	service      string
	fallbackPath string
	mu           sync.Mutex
}

// NewTokenStore creates a keyring wrapper for the given service name.
func NewTokenStore(serviceName, fallbackPath string) *TokenStore {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = "roulette-table"
	}
	return &TokenStore{
		service:      serviceName,
		fallbackPath: fallbackPath,
	}
}

// LoadOrCreate returns the stored API token, minting and persisting a new
// one on first use.
func (t *TokenStore) LoadOrCreate() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	token, err := keyring.Get(t.service, tokenAccount)
	switch {
	case err == nil && token != "":
		return token, nil
	case err != nil && !errors.Is(err, keyring.ErrNotFound):
		// Keyring unavailable; fall back to the file.
		if tok, ferr := t.readFallback(); ferr == nil && tok != "" {
			return tok, nil
		}
	}

	token, err = mintToken()
	if err != nil {
		return "", err
	}

	if err := keyring.Set(t.service, tokenAccount, token); err != nil {
		if ferr := t.writeFallback(token); ferr != nil {
			return "", fmt.Errorf("store token: keyring: %v, fallback: %w", err, ferr)
		}
	}
	return token, nil
}

// Delete removes the token from the keyring and the fallback file.
func (t *TokenStore) Delete() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := keyring.Delete(t.service, tokenAccount); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	if t.fallbackPath != "" {
		if err := os.Remove(t.fallbackPath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (t *TokenStore) readFallback() (string, error) {
	if t.fallbackPath == "" {
		return "", errors.New("no fallback path configured")
	}
	data, err := os.ReadFile(t.fallbackPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (t *TokenStore) writeFallback(token string) error {
	if t.fallbackPath == "" {
		return errors.New("no fallback path configured")
	}
	if err := os.MkdirAll(filepath.Dir(t.fallbackPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(t.fallbackPath, []byte(token+"\n"), 0o600)
}

func mintToken() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}
