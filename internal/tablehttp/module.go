package tablehttp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/MJE43/roulette-table-go/internal/spinstore"
)

// Module is a Wails-bound service that owns the spin store and the local
// HTTP server. The UI calls its methods directly (bindings); external tools
// read the HTTP API. New spins recorded through the module raise UI events.
type Module struct {
	ctx    context.Context
	store  *spinstore.Store
	server *Server

	port  int
	token string
}

// NewModule constructs the module but does not start the HTTP server. Call
// Startup(ctx) from the main.go OnStartup hook.
func NewModule(store *spinstore.Store, port int, token string) *Module {
	return &Module{
		store: store,
		port:  port,
		token: token,
	}
}

// Store exposes the underlying spin store to the bindings layer.
func (m *Module) Store() *spinstore.Store { return m.store }

// Startup stores the Wails context and starts the local HTTP server.
func (m *Module) Startup(ctx context.Context) error {
	m.ctx = ctx
	m.server = NewServer(m.store, m.port, m.token)
	return m.server.Start()
}

// Shutdown stops the HTTP server and closes the store.
func (m *Module) Shutdown(ctx context.Context) error {
	if m.server != nil {
		_ = m.server.Shutdown(ctx)
	}
	return m.store.Close()
}

// EmitNewSpins raises a UI event for a session so the frontend can tail the
// store. Safe to call before Startup; it is then a no-op.
func (m *Module) EmitNewSpins(sessionID uuid.UUID) {
	if m.ctx == nil {
		return
	}
	// The client tails from its own lastID; the event carries no rows.
	runtime.EventsEmit(m.ctx, "table:newspins:"+sessionID.String())
}

// ------------- Wails binding methods (UI calls) -------------

// ListSessions returns recent sessions with aggregates, ordered by
// last_seen_at desc.
func (m *Module) ListSessions(limit int, offset int) ([]spinstore.Session, error) {
	return m.store.ListSessions(m.ctx, limit, offset)
}

// GetSession returns metadata and aggregates for a session.
func (m *Module) GetSession(sessionID string) (spinstore.Session, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return spinstore.Session{}, fmt.Errorf("invalid session id: %w", err)
	}
	return m.store.GetSession(m.ctx, id)
}

// SpinsPage is a convenience wrapper exposing both rows and total for
// frontend consumption.
type SpinsPage struct {
	Rows  []spinstore.Spin `json:"rows"`
	Total int64            `json:"total"`
}

// GetSpinsPage returns a page of spins along with the total row count.
func (m *Module) GetSpinsPage(sessionID string, order string, limit int, offset int) (SpinsPage, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return SpinsPage{}, fmt.Errorf("invalid session id: %w", err)
	}
	rows, total, err := m.store.ListSpins(m.ctx, id, order, limit, offset)
	if err != nil {
		return SpinsPage{}, err
	}
	return SpinsPage{Rows: rows, Total: total}, nil
}

// TailResponse contains spins with id > sinceID and the new lastID.
type TailResponse struct {
	Rows   []spinstore.Spin `json:"rows"`
	LastID int64            `json:"lastID"`
}

// Tail returns spins recorded after sinceID, ordered by id asc.
func (m *Module) Tail(sessionID string, sinceID int64, limit int) (TailResponse, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return TailResponse{}, fmt.Errorf("invalid session id: %w", err)
	}
	rows, err := m.store.TailSpins(m.ctx, id, sinceID, limit)
	if err != nil {
		return TailResponse{}, err
	}
	lastID := sinceID
	if len(rows) > 0 {
		lastID = rows[len(rows)-1].ID
	}
	return TailResponse{Rows: rows, LastID: lastID}, nil
}

// ExportCSV writes all spins for a session to a temp CSV and returns the
// path.
func (m *Module) ExportCSV(sessionID string) (string, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return "", fmt.Errorf("invalid session id: %w", err)
	}
	dir := os.TempDir()
	name := fmt.Sprintf("session_%s_%d.csv", id.String(), time.Now().UTC().UnixNano())
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := m.store.ExportCSV(m.ctx, f, id); err != nil {
		return "", err
	}
	return path, nil
}

// UpdateNotes sets the notes field on a session.
func (m *Module) UpdateNotes(sessionID string, notes string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	return m.store.UpdateNotes(m.ctx, id, notes)
}

// ServiceInfo describes the local API for a settings/about view.
type ServiceInfo struct {
	URL          string `json:"url"`
	TokenEnabled bool   `json:"tokenEnabled"`
}

func (m *Module) Info() ServiceInfo {
	return ServiceInfo{
		URL:          fmt.Sprintf("http://127.0.0.1:%d/table/sessions", m.port),
		TokenEnabled: m.token != "",
	}
}
