package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pokerjest/mediasorter/internal/catalog"
	"github.com/pokerjest/mediasorter/internal/config"
	"github.com/pokerjest/mediasorter/internal/db"
	"github.com/pokerjest/mediasorter/internal/downloader"
	"github.com/pokerjest/mediasorter/internal/event"
	"github.com/pokerjest/mediasorter/internal/jellyfin"
	"github.com/pokerjest/mediasorter/internal/logging"
	"github.com/pokerjest/mediasorter/internal/parser"
	"github.com/pokerjest/mediasorter/internal/service"
	"github.com/pokerjest/mediasorter/internal/tmdb"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const hookDrainTimeout = 30 * time.Second

// commandContext lazily loads the bootstrap config, logger and database shared by every command.
type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	once   sync.Once
	cfg    *config.Config
	logger zerolog.Logger
	gdb    *gorm.DB
	store  *db.Store
	err    error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensure() error {
	c.once.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.err = err
			return
		}
		level := cfg.Log.Level
		if v := strings.TrimSpace(*c.logLevelFlag); v != "" {
			level = v
		}
		// stdout 留给命令输出
		c.logger = logging.Setup(level, cfg.Log.Format, os.Stderr)

		gdb, err := db.Open(cfg.Database.Path)
		if err != nil {
			c.err = err
			return
		}
		c.cfg = cfg
		c.gdb = gdb
		c.store = db.NewStore(gdb)
	})
	return c.err
}

func (c *commandContext) close() error {
	if c.gdb == nil {
		return nil
	}
	err := db.Close(c.gdb)
	c.gdb = nil
	return err
}

// settings merges built-in defaults, the engine section of config.yaml and the KV table.
func (c *commandContext) settings() (*config.Settings, error) {
	if err := c.ensure(); err != nil {
		return nil, err
	}
	kv, err := c.store.ConfigMap()
	if err != nil {
		return nil, fmt.Errorf("read config table: %w", err)
	}
	s, warnings := config.BuildSettings(c.cfg.Engine, kv)
	for _, w := range warnings {
		c.logger.Warn().Msg(w)
	}
	return s, nil
}

// engine is the fully wired organizer plus what the daemon needs besides it.
type engine struct {
	settings  *config.Settings
	organizer *service.Organizer
	bus       *event.InMemoryBus
	qb        *downloader.QBittorrentClient // nil when qb_url is empty
	jellyfin  *jellyfin.Client              // nil when jellyfin_url is empty
}

// engine wires the organizer; overrides adjust its dependencies before construction.
func (c *commandContext) engine(overrides ...func(*service.Deps)) (*engine, error) {
	s, err := c.settings()
	if err != nil {
		return nil, err
	}
	if s.TMDB.APIKey == "" {
		c.logger.Warn().Msg("tmdb_api_key is empty, catalog lookups will fail")
	}

	api := tmdb.NewClient(s.TMDB.APIKey, s.TMDB.BaseURL, s.TMDB.Proxy)
	resolver := catalog.NewResolver(api, catalog.Options{
		PrimaryLanguage:   s.TMDB.Primary,
		SecondaryLanguage: s.TMDB.Secondary,
		FallbackLanguage:  s.TMDB.Fallback,
	}, c.logger)

	ledger, err := service.OpenLedger(c.cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}

	eng := &engine{settings: s}

	bus := event.NewInMemoryBus()
	bus.OnPanic = func(e event.Event, r any) {
		c.logger.Error().Interface("panic", r).Str("event", string(e.Type)).Msg("event handler panicked")
	}
	var refresher service.LibraryRefresher
	if s.Jellyfin.URL != "" {
		eng.jellyfin = jellyfin.NewClient(s.Jellyfin.URL, s.Jellyfin.APIKey)
		refresher = eng.jellyfin
	}
	service.RegisterHooks(bus, refresher, s.HookCommand, c.logger)

	deps := service.Deps{
		Parser:   parser.New(parser.NewGuesser(s.Guesser), parser.NewCleaner(s.Denylist)),
		Resolver: resolver,
		Ledger:   ledger,
		Aliases:  c.store,
		Bus:      bus,
	}
	if s.QB.URL != "" {
		eng.qb = downloader.NewQBittorrentClient(s.QB.URL, s.QB.Username, s.QB.Password, c.logger)
		deps.Labels = eng.qb
	}

	for _, fn := range overrides {
		fn(&deps)
	}

	org, err := service.NewOrganizer(s, deps, c.logger)
	if err != nil {
		return nil, err
	}
	eng.organizer, eng.bus = org, bus
	return eng, nil
}

// probe checks the optional integrations once at startup. They are only
// used best-effort, so failures are warnings.
func (e *engine) probe(ctx context.Context, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if e.qb != nil {
		if v, err := e.qb.GetVersion(ctx); err != nil {
			logger.Warn().Err(err).Msg("qBittorrent unreachable, label hints disabled until it is back")
		} else {
			logger.Info().Str("version", v).Msg("qBittorrent connected")
		}
	}
	if e.jellyfin != nil {
		if info, err := e.jellyfin.GetPublicInfo(ctx); err != nil {
			logger.Warn().Err(err).Msg("Jellyfin unreachable, library refresh may fail")
		} else {
			logger.Info().Str("server", info.ServerName).Str("version", info.Version).Msg("Jellyfin connected")
		}
	}
}

// drainHooks gives running hooks (library refresh, hook command) time to finish before exit.
func (e *engine) drainHooks(logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), hookDrainTimeout)
	defer cancel()
	if !e.bus.Drain(ctx) {
		logger.Warn().Dur("timeout", hookDrainTimeout).Msg("hooks still running at exit")
	}
}
