package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vitabot/internal/config"
	"vitabot/internal/reminder"
	"vitabot/internal/store"
	"vitabot/internal/transport"
	"vitabot/internal/transport/telegram"
	"vitabot/pkg/logx"
)

const (
	updateBuffer = 256
	stopTimeout  = 10 * time.Second
)

// App owns the whole service: config manager, logging, storage, the chat
// adapter, the reminder engine and the update router. Construction wires
// everything; Start brings it up and Stop tears it down in reverse order.
type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	db      *store.Store
	adapter *telegram.Adapter
	router  *Router

	mu        sync.Mutex
	engine    *reminder.Engine
	engineCfg reminder.Config

	updates chan transport.Update
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(cfg.Logging.Logx())
	mgr.SetLogger(log.With(logx.String("component", "config")))

	busy, _ := cfg.Storage.ResolveBusyTimeout()
	db, err := store.Open(store.Config{Path: cfg.Storage.Path, BusyTimeout: busy},
		log.With(logx.String("component", "store")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	pollTimeout, _ := cfg.Telegram.ResolvePollTimeout()
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("component", "telegram")))
	if err != nil {
		_ = db.Close()
		_ = logSvc.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	rc, err := cfg.Reminders.Resolve()
	if err != nil {
		_ = db.Close()
		_ = logSvc.Close()
		return nil, err
	}

	a := &App{
		cfgMgr:    mgr,
		logSvc:    logSvc,
		log:       log,
		db:        db,
		adapter:   adapter,
		engineCfg: rc,
		updates:   make(chan transport.Update, updateBuffer),
	}
	a.engine = a.newEngine(rc)
	a.router = NewRouter(adapter, db, log)
	return a, nil
}

func (a *App) newEngine(rc reminder.Config) *reminder.Engine {
	dispatcher := reminder.NewTelegramDispatcher(a.adapter, rc.RatePerSec,
		a.log.With(logx.String("component", "dispatcher")))
	return reminder.NewEngine(rc, a.db, dispatcher, a.db, a.db,
		a.log.With(logx.String("component", "engine")))
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return fmt.Errorf("start telegram: %w", err)
	}
	if err := a.engine.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start engine: %w", err)
	}

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.router.Run(runCtx, a.updates)
	}()
	go func() {
		defer a.wg.Done()
		_ = a.cfgMgr.Watch(runCtx)
	}()

	reloads := a.cfgMgr.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgMgr.Unsubscribe(reloads)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-reloads:
				if !ok {
					return
				}
				a.applyConfig(runCtx, cfg)
			}
		}
	}()

	a.log.Info("vitabot started")
	return nil
}

// applyConfig hot-applies what can change at runtime: log level/sinks and the
// engine's tick parameters. Token and storage path changes need a restart.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logSvc.Apply(cfg.Logging.Logx())

	rc, err := cfg.Reminders.Resolve()
	if err != nil {
		// Validator should have rejected this before publish.
		a.log.Warn("reloaded config has invalid reminder settings", logx.Err(err))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if rc == a.engineCfg {
		return
	}
	a.log.Info("reminder settings changed; restarting engine",
		logx.Duration("tick", rc.TickInterval),
		logx.Duration("lookbehind", rc.Lookbehind))

	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	a.engine.Stop(stopCtx)
	cancel()

	a.engine = a.newEngine(rc)
	a.engineCfg = rc
	if err := a.engine.Start(ctx); err != nil {
		a.log.Error("engine restart failed", logx.Err(err))
	}
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	engine := a.engine
	a.mu.Unlock()

	if engine != nil {
		engine.Stop(ctx)
	}
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("telegram stop", logx.Err(err))
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	err := a.db.Close()
	a.log.Info("vitabot stopped")
	_ = a.logSvc.Close()
	return err
}
