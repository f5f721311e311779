package main

import (
	"context"
	"embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/MJE43/roulette-table-go/bindings"
	"github.com/MJE43/roulette-table-go/internal/spinstore"
	"github.com/MJE43/roulette-table-go/internal/tablehttp"
)

//go:embed all:frontend/dist
var assets embed.FS

const (
	appConfigDirName = "roulette-table-go"
	repoURL          = "https://github.com/MJE43/roulette-table-go"
)

var (
	appCtx   context.Context
	appCtxMu sync.RWMutex
)

func buildWindowsOptions() *windows.Options {
	return &windows.Options{
		BackdropType: windows.Mica,
		Theme:        windows.SystemDefault,

		CustomTheme: &windows.ThemeSettings{
			DarkModeTitleBar:  windows.RGB(13, 40, 24),
			DarkModeTitleText: windows.RGB(226, 232, 240),
			DarkModeBorder:    windows.RGB(30, 70, 45),

			LightModeTitleBar:  windows.RGB(245, 250, 247),
			LightModeTitleText: windows.RGB(15, 35, 25),
			LightModeBorder:    windows.RGB(210, 230, 220),
		},

		WebviewIsTransparent: false,
		WindowIsTranslucent:  false,

		WindowClassName: "RouletteTableWindow",
	}
}

func buildMacOptions() *mac.Options {
	return &mac.Options{
		TitleBar: &mac.TitleBar{
			TitlebarAppearsTransparent: false,
			HideToolbarSeparator:       true,
		},
		WebviewIsTransparent: false,
		WindowIsTranslucent:  false,
		About: &mac.AboutInfo{
			Title:   "Roulette Table",
			Message: "A single-table American roulette simulator.\n\nBuilt with Wails.",
		},
	}
}

func buildLinuxOptions() *linux.Options {
	return &linux.Options{
		WindowIsTranslucent: false,
		WebviewGpuPolicy:    linux.WebviewGpuPolicyAlways,
		ProgramName:         "roulette-table",
	}
}

func main() {
	log.Printf("Starting Roulette Table (Go %s)...", runtime.Version())

	// Spins live in an in-memory database; nothing survives an app restart.
	store, err := spinstore.New(spinstore.MemoryDSN)
	if err != nil {
		log.Fatalf("spin store init failed: %v", err)
	}

	port := envInt("TABLE_HTTP_PORT", 17889)
	token := os.Getenv("TABLE_HTTP_TOKEN")
	if token == "" {
		tokens := tablehttp.NewTokenStore(appConfigDirName, filepath.Join(appDataDir(), "api-token"))
		token, err = tokens.LoadOrCreate()
		if err != nil {
			log.Printf("token store unavailable, table API runs without auth: %v", err)
		}
	}

	tables := tablehttp.NewModule(store, port, token)
	app := bindings.New(tables)

	startup := func(ctx context.Context) {
		app.Startup(ctx)
		setAppContext(ctx)

		if err := tables.Startup(ctx); err != nil {
			log.Printf("table API failed to start: %v", err)
		} else {
			info := tables.Info()
			log.Printf("table API ready at %s (token enabled: %v)", info.URL, info.TokenEnabled)
		}
	}

	beforeClose := func(ctx context.Context) (prevent bool) {
		app.Shutdown(ctx)
		if err := tables.Shutdown(ctx); err != nil {
			log.Printf("table module shutdown error: %v", err)
		}
		setAppContext(nil)
		return false
	}

	if err := wails.Run(&options.App{
		Title:            "Roulette Table",
		Width:            1024,
		Height:           720,
		MinWidth:         800,
		MinHeight:        600,
		WindowStartState: options.Normal,
		BackgroundColour: &options.RGBA{R: 13, G: 40, B: 24, A: 255},

		AssetServer: &assetserver.Options{
			Assets: assets,
		},

		OnStartup:     startup,
		OnBeforeClose: beforeClose,
		OnShutdown: func(ctx context.Context) {
			log.Println("Application shutdown complete")
		},

		Menu: buildAppMenu(),

		Bind: []interface{}{app, tables},

		LogLevel:           logger.INFO,
		LogLevelProduction: logger.ERROR,

		EnableDefaultContextMenu:         false,
		EnableFraudulentWebsiteDetection: false,

		ErrorFormatter: func(err error) any {
			if err == nil {
				return nil
			}
			return err.Error()
		},

		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId: "1d7a2c90-4b3e-4f61-9c7d-roulette-table",
			OnSecondInstanceLaunch: func(data options.SecondInstanceData) {
				log.Printf("Second instance launch prevented. Args: %v", data.Args)
			},
		},

		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop:     false,
			DisableWebViewDrop: true,
		},

		Windows: buildWindowsOptions(),
		Mac:     buildMacOptions(),
		Linux:   buildLinuxOptions(),
	}); err != nil {
		log.Printf("Error running Wails app: %v", err)
		panic(err)
	}

	log.Println("Application exited normally")
}

// appDataDir returns an OS-appropriate writable directory.
func appDataDir() string {
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, appConfigDirName)
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, "."+appConfigDirName)
	}
	return "."
}

func envInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		var v int
		if _, err := fmt.Sscanf(s, "%d", &v); err == nil {
			return v
		}
	}
	return def
}

func buildAppMenu() *menu.Menu {
	rootMenu := menu.NewMenu()

	if runtime.GOOS == "darwin" {
		if appMenu := menu.AppMenu(); appMenu != nil {
			rootMenu.Append(appMenu)
		}
	}

	fileMenu := menu.NewMenu()
	fileMenu.AddText("Quit", keys.CmdOrCtrl("q"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.Quit(ctx)
		})
	})
	rootMenu.Append(menu.SubMenu("File", fileMenu))

	viewMenu := menu.NewMenu()
	viewMenu.AddText("Reload Frontend", keys.CmdOrCtrl("r"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.WindowReloadApp(ctx)
		})
	})
	viewMenu.AddText("Toggle Fullscreen", keys.Combo("f", keys.CmdOrCtrlKey, keys.ShiftKey), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			toggleFullscreen(ctx)
		})
	})
	rootMenu.Append(menu.SubMenu("View", viewMenu))

	helpMenu := menu.NewMenu()
	helpMenu.AddText("Project Repository", nil, func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.BrowserOpenURL(ctx, repoURL)
		})
	})
	rootMenu.Append(menu.SubMenu("Help", helpMenu))

	return rootMenu
}

func toggleFullscreen(ctx context.Context) {
	if wruntime.WindowIsFullscreen(ctx) {
		wruntime.WindowUnfullscreen(ctx)
		return
	}
	wruntime.WindowFullscreen(ctx)
}

func setAppContext(ctx context.Context) {
	appCtxMu.Lock()
	defer appCtxMu.Unlock()
	appCtx = ctx
}

func withAppContext(action func(context.Context)) {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()
	if ctx == nil {
		log.Println("application context not initialised; ignoring menu action")
		return
	}
	action(ctx)
}
