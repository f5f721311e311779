package bindings

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/MJE43/roulette-table-go/internal/games"
	"github.com/MJE43/roulette-table-go/internal/scripting"
	"github.com/MJE43/roulette-table-go/internal/spinstore"
	"github.com/MJE43/roulette-table-go/internal/table"
	"github.com/MJE43/roulette-table-go/internal/tablehttp"
)

// App is the main Wails binding. It owns the active table session, the
// output buffer shown in the UI, and the autoplay script engine.
type App struct {
	ctx context.Context
	mu  sync.Mutex

	session   *table.Session
	sessionID uuid.UUID
	output    []string

	// Provably fair seed state. The hash is committed at session start;
	// the plain server seed is revealable once the session is over.
	clientSeed     string
	serverSeed     string
	seedHash       string
	prevServerSeed string

	tables *tablehttp.Module
	script *scripting.Engine

	// newWheel lets tests swap the provably fair wheel for a scripted one.
	newWheel func(serverSeed, clientSeed string) table.Wheel
}

// defaultClientSeed is used until the player sets their own.
const defaultClientSeed = "roulette-table"

// New creates the app binding. tables may be nil when the local HTTP module
// is disabled.
func New(tables *tablehttp.Module) *App {
	app := &App{
		tables:     tables,
		clientSeed: defaultClientSeed,
		newWheel: func(serverSeed, clientSeed string) table.Wheel {
			return games.NewFairWheel(serverSeed, clientSeed)
		},
	}
	app.script = scripting.NewEngine(scriptPlacer{app}, app)
	return app
}

// Startup stores the Wails context. Called from the OnStartup hook.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
}

// Shutdown stops any running script. Called from the OnShutdown hook.
func (a *App) Shutdown(ctx context.Context) {
	a.script.Stop()
}

// Emit implements scripting.EventEmitter over the Wails event bus.
func (a *App) Emit(event string, data any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, event, data)
}

// Output returns a copy of the current output buffer.
func (a *App) Output() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outputCopy()
}

// appendOutput adds lines to the buffer and notifies the UI. Callers hold
// a.mu.
func (a *App) appendOutput(lines ...string) {
	a.output = append(a.output, lines...)
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, "table:log", lines)
	}
}

func (a *App) outputCopy() []string {
	out := make([]string, len(a.output))
	copy(out, a.output)
	return out
}

func (a *App) store() *spinstore.Store {
	if a.tables == nil {
		return nil
	}
	return a.tables.Store()
}

func (a *App) reqCtx() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}
