package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gearhaus/market-runtime/internal/config"
	"github.com/gearhaus/market-runtime/internal/dedup"
	"github.com/gearhaus/market-runtime/internal/history"
	"github.com/gearhaus/market-runtime/internal/mutate"
	"github.com/gearhaus/market-runtime/internal/nav"
	"github.com/gearhaus/market-runtime/internal/remote"
	"github.com/gearhaus/market-runtime/internal/session"
	"github.com/gearhaus/market-runtime/internal/signals"
	"github.com/gearhaus/market-runtime/internal/store"
	"github.com/gearhaus/market-runtime/internal/syncq"
	"github.com/gearhaus/market-runtime/internal/watcher"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	store        *store.Store
	selection    *session.Cache
	toasts       *dedup.ToastCenter
	shown        *dedup.ShownTracker
	gate         *mutate.Gate
	bus          *signals.Bus
	ledger       *syncq.Ledger
	worker       *syncq.Worker
	client       *remote.Client
	push         *remote.PushFeed
	orchestrator *Orchestrator
	navState     *nav.State
	historyHost  *history.StackHost
	bridge       *history.Bridge
	watcher      *watcher.Service
}

// storeUsers adapts the sqlite store to the navigation guard's view
// of the signed-in user.
type storeUsers struct {
	store *store.Store
}

func (u storeUsers) Current() (nav.User, bool) {
	record, err := u.store.CurrentUser(context.Background())
	if err != nil {
		return nav.User{}, false
	}
	return nav.User{ID: record.ID, Role: record.Role}, true
}

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	selection := session.NewCache(cfg.SessionPath, logger)
	toasts := dedup.NewToastCenter(logger)
	shown := dedup.NewShownTracker()
	gate := mutate.NewGate(logger)
	bus := signals.NewBus(logger)

	ledger := syncq.NewLedger(sqlStore, logger)
	if err := ledger.Load(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	client := remote.New(cfg)

	runtime := &Runtime{
		cfg:       cfg,
		logger:    logger.With("component", "runtime"),
		store:     sqlStore,
		selection: selection,
		toasts:    toasts,
		shown:     shown,
		gate:      gate,
		bus:       bus,
		ledger:    ledger,
		client:    client,
	}

	runtime.worker = syncq.NewWorker(
		ledger,
		client,
		time.Duration(cfg.SyncIntervalSec)*time.Second,
		time.Duration(cfg.SyncEagerDelaySec)*time.Second,
		cfg.SyncMaxAttempts,
		func(report syncq.Report) { runtime.orchestrator.HandleSyncReport(report) },
		logger,
	)
	runtime.orchestrator = NewOrchestrator(
		sqlStore,
		ledger,
		runtime.worker,
		client,
		toasts,
		shown,
		gate,
		bus,
		time.Duration(cfg.LoadingTimeoutSec)*time.Second,
		logger,
	)

	runtime.historyHost = history.NewStackHost()
	runtime.navState = nav.NewState(storeUsers{store: sqlStore}, selection, runtime.historyHost, logger)
	runtime.bridge = history.NewBridge(runtime.historyHost, runtime.navState, runtime.orchestrator.LoadedVehicle, logger)

	runtime.push = remote.NewPushFeed(cfg.PushWSURL, cfg.APIToken, func(event remote.PushEvent) {
		runtime.orchestrator.HandlePushEvent(context.Background(), event)
	}, logger)

	runtime.watcher, err = watcher.New(cfg.InventoryImportDir, logger, func(ctx context.Context, path string) {
		if err := runtime.orchestrator.ImportInventoryFile(ctx, path); err != nil {
			logger.Warn("inventory import failed", "path", path, "error", err)
		}
	})
	if err != nil {
		sqlStore.Close()
		return nil, err
	}

	if err := runtime.orchestrator.WarmFromStore(context.Background()); err != nil {
		runtime.logger.Warn("warm local catalog", "error", err)
	}

	return runtime, nil
}

func (r *Runtime) Orchestrator() *Orchestrator { return r.orchestrator }
func (r *Runtime) Nav() *nav.State             { return r.navState }
func (r *Runtime) History() *history.Bridge    { return r.bridge }
func (r *Runtime) Toasts() *dedup.ToastCenter  { return r.toasts }
func (r *Runtime) Signals() *signals.Bus       { return r.bus }
func (r *Runtime) Store() *store.Store         { return r.store }
func (r *Runtime) Ledger() *syncq.Ledger       { return r.ledger }
func (r *Runtime) Worker() *syncq.Worker       { return r.worker }
