package daemon

import (
	"context"
	"os"
	"time"

	"github.com/mvasconc/phonelink/internal/archive"
	"github.com/mvasconc/phonelink/internal/bus"
	"github.com/mvasconc/phonelink/internal/cache"
	"github.com/mvasconc/phonelink/internal/config"
	"github.com/mvasconc/phonelink/internal/contacts"
	"github.com/mvasconc/phonelink/internal/lock"
	"github.com/mvasconc/phonelink/internal/logging"
	"github.com/mvasconc/phonelink/internal/notify"
	"github.com/mvasconc/phonelink/internal/outbox"
	"github.com/mvasconc/phonelink/internal/phone"
	"github.com/mvasconc/phonelink/internal/session"
	"github.com/mvasconc/phonelink/internal/status"
	"github.com/mvasconc/phonelink/internal/store"
	intsync "github.com/mvasconc/phonelink/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved device configuration passed to the fx module.
type Params struct {
	DeviceID string
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideTimeouts,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideCache,
			provideAdapter,
			provideManager,
			provideArchive,
			provideResolver,
			provideLedger,
			provideNotifier,
			provideWatcher,
			provideSender,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			// First run: defaults apply until a config is written.
			return &config.Config{}, nil
		}
		return nil, err
	}
	return cfg, nil
}

func provideTimeouts(cfg *config.Config) config.Timeouts {
	return cfg.SyncTimeouts()
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.DeviceID), p.DeviceID)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(p Params, b *bus.Bus) *status.Machine {
	return status.NewMachine(b, p.DeviceID)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.DeviceID); err != nil {
		return nil, err
	}
	logger.Info("acquiring device lock", zap.String("device", p.DeviceID))
	l, err := lock.Acquire(session.DeviceDir(p.DeviceID))
	if err != nil {
		return nil, err
	}
	logger.Info("device lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.ArchiveDBPath(p.DeviceID)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("archive initialized", zap.String("path", dbPath))
	return db, nil
}

func provideCache(p Params) *cache.Store {
	c := cache.New()
	c.SwitchDevice(p.DeviceID)
	return c
}

func provideAdapter(b *bus.Bus, t config.Timeouts, logger *zap.Logger) (*phone.Adapter, error) {
	return phone.NewAdapter(b, logger, t.MessagesPerPage)
}

func provideManager(adapter *phone.Adapter, b *bus.Bus, c *cache.Store, t config.Timeouts, logger *zap.Logger) *intsync.Manager {
	return intsync.NewManager(adapter, b, c, t, logger)
}

func provideArchive(p Params, db *store.DB, b *bus.Bus, logger *zap.Logger) *archive.Engine {
	return archive.NewEngine(db, b, p.DeviceID, logger)
}

func provideResolver(db *store.DB) contacts.Resolver {
	return contacts.NewStoreResolver(db)
}

func provideLedger(cfg *config.Config) *notify.Ledger {
	return notify.NewLedger(session.LedgerPath(), cfg.NotificationWindow())
}

func provideNotifier() (notify.Poster, error) {
	return notify.NewNotifier("phonelink", "phone")
}

func provideWatcher(p Params, b *bus.Bus, ledger *notify.Ledger, poster notify.Poster, resolver contacts.Resolver, logger *zap.Logger) *notify.Watcher {
	return notify.NewWatcher(b, ledger, poster, resolver, p.DeviceID, logger)
}

func provideSender(p Params, db *store.DB, adapter *phone.Adapter, t config.Timeouts, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, adapter, p.DeviceID, t, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, cfg *config.Config, lk *lock.Lock, adapter *phone.Adapter, engine *archive.Engine, watcher *notify.Watcher, sender *outbox.Sender, c *cache.Store, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Seed the in-memory cache from the archive so the first list
			// open after a restart is warm.
			if seeded, err := engine.SeedCache(c, 200); err != nil {
				logger.Warn("failed to seed cache from archive", zap.Error(err))
			} else if seeded > 0 {
				logger.Info("cache seeded from archive", zap.Int("conversations", seeded))
			}
			if last, err := engine.LastListSync(); err != nil {
				logger.Warn("failed to read sync checkpoint", zap.Error(err))
			} else if !last.IsZero() {
				logger.Info("last confirmed snapshot",
					zap.Time("at", last), zap.Duration("age", time.Since(last)))
			}

			// Start persisting live signals before the adapter pumps them.
			engine.Start(context.Background())

			if cfg.NotificationsEnabled() {
				watcher.Start(context.Background())
			} else {
				logger.Info("desktop notifications disabled by config")
			}

			sender.Start(context.Background())

			_ = machine.Transition(status.Connecting)
			if err := adapter.Start(context.Background()); err != nil {
				logger.Error("failed to attach to phone daemon", zap.Error(err))
				_ = machine.Transition(status.Error)
				return err
			}
			_ = machine.Transition(status.Watching)
			logger.Info("daemon watching device", zap.String("device", p.DeviceID))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sender.Stop()
			watcher.Stop()
			engine.Stop()
			adapter.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
