// Package app wires the bot together: config, logging, tenant store,
// identity store, Discord adapter, features, and the internal API.
package app

import (
	"context"
	"errors"
	"fmt"

	"sectorbot/internal/announce"
	"sectorbot/internal/api"
	"sectorbot/internal/commands"
	"sectorbot/internal/config"
	"sectorbot/internal/feature/selector"
	"sectorbot/internal/feature/staffup"
	"sectorbot/internal/identity"
	"sectorbot/internal/observability/pprof"
	discord "sectorbot/internal/platform/discord"
	"sectorbot/internal/tenant"
	logx "sectorbot/pkg/logx"
	"sectorbot/pkg/vatsim"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	tenants  *tenant.Store
	resolver *tenant.Resolver
	ids      *identity.Store

	adapter *discord.Adapter

	router    *announce.Router
	selectors *selector.Service
	watcher   *staffup.Watcher
	cmds      *commands.Handler
	api       *api.Server
	pprof     *pprof.Server

	watchCancel context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	tenants := tenant.NewStore(cfg.Tenants.Path, log.With(logx.String("comp", "tenants")))
	if err := tenants.Load(); err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("load tenants: %w", err)
	}
	resolver := tenant.NewResolver(tenants)

	backend, err := identity.Open(identity.Config{
		Driver: cfg.Identity.Driver,
		Path:   cfg.Identity.Path,
	}, log.With(logx.String("comp", "identity")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	ids := identity.NewStore(backend)

	adapter, err := discord.New(discord.Config{Token: cfg.Discord.Token},
		log.With(logx.String("comp", "discord")))
	if err != nil {
		_ = ids.Close()
		logSvc.Close()
		return nil, err
	}
	logSvc.SetSender(adapter)

	router := announce.NewRouter(resolver, adapter, log.With(logx.String("comp", "announce")))
	selectors := selector.NewService(ids, resolver, adapter, log.With(logx.String("comp", "selector")))
	cmds := commands.NewHandler(cfg.Discord.CommandPrefix,
		tenants, resolver, router, selectors, adapter,
		log.With(logx.String("comp", "commands")))

	adapter.OnMessage(cmds.Handle)
	adapter.OnComponent(selectors.HandleComponent)

	a := &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		tenants:   tenants,
		resolver:  resolver,
		ids:       ids,
		adapter:   adapter,
		router:    router,
		selectors: selectors,
		cmds:      cmds,
	}

	if cfg.Staffup.Enabled {
		a.watcher = staffup.NewWatcher(staffup.Config{
			Schedule:  cfg.Staffup.Schedule,
			Positions: cfg.Staffup.Positions,
		}, vatsim.NewClient(""), tenants, resolver, adapter,
			log.With(logx.String("comp", "staffup")))
	}
	if cfg.API.Enabled {
		a.api = api.NewServer(api.Config{
			Address: cfg.API.Address,
			Secret:  cfg.API.Secret,
		}, router, log)
	}
	if cfg.Pprof.Enabled {
		a.pprof = pprof.New(pprof.Config{
			Enabled: true,
			Address: cfg.Pprof.Address,
			Token:   cfg.Pprof.Token,
		}, log)
	}
	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	if err := a.adapter.Start(ctx); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	if a.api != nil {
		if err := a.api.Start(ctx); err != nil {
			_ = a.adapter.Stop(ctx)
			return err
		}
	}
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			a.Stop(ctx)
			return err
		}
	}
	if a.pprof != nil {
		if err := a.pprof.Start(ctx); err != nil {
			// Profiling is optional; a bad bind must not take the bot down.
			a.log.Warn("pprof start failed", logx.Err(err))
			a.pprof = nil
		}
	}

	// Selector messages are re-ensured on every start so a deleted message
	// comes back without operator action. Unconfigured tenants are skipped.
	for _, tenantID := range a.tenants.TenantIDs() {
		for _, kind := range []identity.Kind{identity.KindBreakboardSelector, identity.KindImpromptuSelector} {
			if _, err := a.selectors.Ensure(ctx, tenantID, kind); err != nil && !errors.Is(err, selector.ErrNotConfigured) {
				a.log.Warn("selector bootstrap failed",
					logx.Int64("tenant", tenantID), logx.String("kind", string(kind)), logx.Err(err))
			}
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	go func() {
		if err := a.cfgm.Watch(watchCtx, a.onConfigChange); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.log.Info("started")
	return nil
}

// onConfigChange applies the dynamic subset of a reloaded config. Transports
// and stores keep their boot-time settings until restart.
func (a *App) onConfigChange(cfg *config.Config) {
	a.logs.Apply(mapLogConfig(cfg))
	a.log.Info("logging config applied", logx.String("level", cfg.Log.Level))
}

func (a *App) Stop(ctx context.Context) {
	if a.watchCancel != nil {
		a.watchCancel()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.api != nil {
		a.api.Stop(ctx)
	}
	if a.pprof != nil {
		a.pprof.Stop(ctx)
	}
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("discord close error", logx.Err(err))
	}
	if err := a.ids.Close(); err != nil {
		a.log.Warn("identity close error", logx.Err(err))
	}
	a.log.Info("stopped")
	a.logs.Close()
}

func mapLogConfig(cfg *config.Config) logx.Config {
	console := true
	if cfg.Log.Console != nil {
		console = *cfg.Log.Console
	}
	return logx.Config{
		Level:   cfg.Log.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: cfg.Log.File.Enabled,
			Path:    cfg.Log.File.Path,
		},
		Discord: logx.DiscordConfig{
			Enabled:    cfg.Log.Discord.Enabled,
			ChannelID:  cfg.Log.Discord.ChannelID,
			MinLevel:   cfg.Log.Discord.MinLevel,
			RatePerSec: cfg.Log.Discord.RatePerSec,
		},
	}
}
