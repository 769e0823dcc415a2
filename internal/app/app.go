package app

import (
	"context"
	"sync"
	"time"

	"github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/broadcast"
	"github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/config"
	"github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/dining"
	"github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/storage"
	kit "github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/transport"
	"github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/transport/telegram"
	"github.com/Evan-Kreutzwiser/queensu-menu-bot/pkg/logx"
)

// App owns every long-lived component and their startup/shutdown order.
// Construction wires dependencies explicitly; nothing reaches through
// globals.
type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	adapter *telegram.Adapter
	store   storage.Store
	menus   *dining.Client
	bcast   *broadcast.Service
	cmds    *Commands

	updates chan kit.Update
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	// Opening the store also ensures the schema exists.
	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	menuTimeout, err := config.ParseDurationOrDefault("menu.timeout", cfg.Menu.Timeout, 15*time.Second)
	if err != nil {
		return nil, err
	}
	menus := dining.NewClient(dining.ClientConfig{
		BaseURL:    cfg.Menu.BaseURL,
		Timeout:    menuTimeout,
		RatePerSec: cfg.Menu.RatePerSec,
	}, log.With(logx.String("comp", "dining")))

	tick, err := config.ParseDurationOrDefault("broadcast.tick", cfg.Broadcast.Tick, 30*time.Minute)
	if err != nil {
		return nil, err
	}
	bcast := broadcast.New(broadcast.Config{
		Enabled:        cfg.Broadcast.Enabled,
		TriggerHour:    cfg.Broadcast.Hour,
		Tick:           tick,
		Timezone:       cfg.Broadcast.Timezone,
		SendRatePerSec: 5,
	}, store, adapter, menus, RenderMenu, log.With(logx.String("comp", "broadcast")))

	cmds := NewCommands(log.With(logx.String("comp", "commands")), adapter, cfg.Telegram.OwnerUserIDs)

	a := &App{
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		adapter: adapter,
		store:   store,
		menus:   menus,
		bcast:   bcast,
		cmds:    cmds,
		updates: make(chan kit.Update, 256),
	}
	a.registerCommands()
	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, a.cancel = context.WithCancel(ctx)

	if err := a.adapter.Start(ctx, a.updates); err != nil {
		return err
	}
	if err := a.adapter.UpdateMenuCommands(ctx, a.cmds.MenuCommands()); err != nil {
		a.log.Warn("could not publish command menu", logx.Err(err))
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.cmds.DispatchLoop(ctx, a.updates)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(ctx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.consumeConfigReloads(ctx)
	}()

	// The scheduler starts last, once the platform connection is up.
	if err := a.bcast.Start(ctx); err != nil {
		return err
	}

	if cfg := a.cfgm.Get(); cfg != nil {
		a.log.Info("menu bot started",
			logx.Bool("broadcast", cfg.Broadcast.Enabled),
			logx.Int("trigger_hour", cfg.Broadcast.Hour),
			logx.String("timezone", cfg.Broadcast.Timezone))
	}
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.bcast.Stop()
	if a.cancel != nil {
		a.cancel()
	}
	_ = a.adapter.Stop(ctx)
	a.wg.Wait()
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	a.log.Info("menu bot stopped")
	return nil
}

// consumeConfigReloads applies hot-reloadable settings published by the
// config watcher: log level/sinks, trigger hour, and the owner list.
func (a *App) consumeConfigReloads(ctx context.Context) {
	sub := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok || cfg == nil {
				return
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.bcast.Apply(broadcast.Config{
				TriggerHour:    cfg.Broadcast.Hour,
				SendRatePerSec: 5,
			})
			a.cmds.SetOwners(cfg.Telegram.OwnerUserIDs)
			a.log.Info("applied reloaded config")
		}
	}
}
