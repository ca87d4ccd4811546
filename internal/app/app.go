// Package app wires the process together: config, logging, store,
// transport, notifier, engine, scheduler. It owns startup order, config
// hot reload, and graceful shutdown.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"remindbot/internal/adapters/telegram"
	"remindbot/internal/config"
	"remindbot/internal/locale"
	"remindbot/internal/notifier"
	"remindbot/internal/remind"
	"remindbot/internal/scheduler"
	"remindbot/internal/session"
	"remindbot/internal/store"
	"remindbot/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store    store.Store
	adapter  *telegram.Adapter
	svc      *remind.Service
	sessions *session.Registry
	sched    *scheduler.Scheduler

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: *cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("component", "config")))

	return &App{cfgMgr: mgr, logSvc: logSvc, log: log}, nil
}

// Start builds the component graph and launches the background loops.
func (a *App) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	cfg := a.cfgMgr.Get()

	defaults, err := sessionDefaults(cfg)
	if err != nil {
		return err
	}
	a.sessions = session.NewRegistry(defaults)

	st, err := store.Open(ctx, store.Config{
		Path:        cfg.Store.Path,
		BusyTimeout: cfg.BusyTimeout(),
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = st

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.PollTimeout(),
	}, a.log.With(logx.String("component", "telegram")))
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("telegram: %w", err)
	}
	a.adapter = adapter

	sender := notifier.New(adapter, notifier.Config{
		RatePerSec: cfg.Notifier.RatePerSec,
		RetryMax:   cfg.Notifier.RetryMax,
		RetryBase:  cfg.RetryBase(),
	}, a.log.With(logx.String("component", "notifier")))

	a.svc = remind.NewService(st, sender, a.sessions, remind.SystemClock(),
		a.log.With(logx.String("component", "remind")),
		remind.Limits{MaxPerWindow: cfg.Limits.MaxPerWindow, Window: cfg.RateWindow()},
	)
	a.svc.SetBatchLimit(cfg.Scheduler.BatchLimit)

	if err := a.svc.LoadUserSettings(ctx); err != nil {
		_ = st.Close()
		return err
	}

	a.sched = scheduler.New(a.svc, cfg.TickInterval(),
		a.log.With(logx.String("component", "scheduler")))
	adapter.Bind(a.svc, a.sched)

	rctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.sched.Run(rctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgMgr.Watch(rctx); err != nil && rctx.Err() == nil {
			a.log.Warn("config watcher exited", logx.Err(err))
		}
	}()

	updates := a.cfgMgr.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgMgr.Unsubscribe(updates)
		for {
			select {
			case <-rctx.Done():
				return
			case next, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(next)
			}
		}
	}()

	if err := adapter.Start(rctx); err != nil {
		cancel()
		a.wg.Wait()
		_ = st.Close()
		return fmt.Errorf("start telegram: %w", err)
	}

	a.running = true
	a.log.Info("started", logx.String("config", "loaded"))
	notifySystemd(daemon.SdNotifyReady, a.log)
	a.startWatchdog(rctx)
	return nil
}

// applyConfig applies the hot-reloadable subset: log levels, tick interval,
// creation limits, and session defaults. Token and store path changes need
// a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: *cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.sched.SetInterval(cfg.TickInterval())
	a.svc.SetBatchLimit(cfg.Scheduler.BatchLimit)
	if d, err := sessionDefaults(cfg); err == nil {
		a.sessions.SetDefaults(d)
	} else {
		a.log.Warn("reloaded defaults invalid, keeping previous", logx.Err(err))
	}
	a.log.Info("config applied")
}

func (a *App) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.cancel
	a.cancel = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()
	if !wasRunning {
		return nil
	}

	notifySystemd(daemon.SdNotifyStopping, a.log)
	if cancel != nil {
		cancel()
	}
	err := a.adapter.Stop(ctx)
	a.wg.Wait()
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.log.Info("stopped")
	_ = a.logSvc.Close()
	return err
}

func sessionDefaults(cfg *config.Config) (session.Defaults, error) {
	tzName, loc, err := locale.ValidateTimezone(cfg.Defaults.Timezone)
	if err != nil {
		return session.Defaults{}, fmt.Errorf("defaults.timezone: %w", err)
	}
	l, err := locale.ValidateLocale(cfg.Defaults.Locale)
	if err != nil {
		return session.Defaults{}, fmt.Errorf("defaults.locale: %w", err)
	}
	return session.Defaults{Locale: l, TZName: tzName, Location: loc}, nil
}

func notifySystemd(state string, log logx.Logger) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Debug("sd_notify failed", logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// startWatchdog pings systemd at half the configured watchdog interval when
// one is set; a wedged process then gets restarted by the supervisor.
func (a *App) startWatchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				notifySystemd(daemon.SdNotifyWatchdog, a.log)
			}
		}
	}()
}
