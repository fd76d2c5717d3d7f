// Command backoffice serves the operator API: endpoint overrides, the agenda
// and bot controls, backed by a file or SQL override store.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	backoffice "github.com/goliatone/go-backoffice"
	"github.com/goliatone/go-backoffice/adapters/gocommand"
	"github.com/goliatone/go-backoffice/adapters/gojob"
	"github.com/goliatone/go-backoffice/adapters/gologger"
	"github.com/goliatone/go-backoffice/core"
	backofficemigrations "github.com/goliatone/go-backoffice/migrations"
	filestore "github.com/goliatone/go-backoffice/store/file"
	sqlstore "github.com/goliatone/go-backoffice/store/sql"
	"github.com/goliatone/go-command"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/joho/godotenv/autoload"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadSettings(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := newLogger(os.Stdout, cfg.Debug)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("backoffice stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg settings, logger core.Logger) error {
	serviceOpts := []backoffice.Option{
		backoffice.WithLogger(logger),
		backoffice.WithConfigProvider(core.NewCfgxConfigProvider(yamlConfigLoader{path: cfg.ConfigPath})),
	}
	var facadeOpts []backoffice.FacadeOption

	var deliveryLog *sqlstore.DeliveryLogStore
	switch cfg.Store {
	case storeFile:
		store, err := filestore.NewStore(cfg.OverridesPath, filestore.WithLogger(logger))
		if err != nil {
			return err
		}
		serviceOpts = append(serviceOpts, backoffice.WithOverrideStore(store))
	default:
		client, err := openPersistence(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
		if err != nil {
			return err
		}
		cacheService, err := repositorycache.NewCacheService(repositorycache.DefaultConfig())
		if err != nil {
			return fmt.Errorf("backoffice: override cache: %w", err)
		}
		overrides, err := sqlstore.NewCachedOverrideStore(factory.OverrideStore(), cacheService)
		if err != nil {
			return err
		}
		serviceOpts = append(serviceOpts, backoffice.WithOverrideStore(overrides))
		deliveryLog = factory.DeliveryLogStore()
		facadeOpts = append(facadeOpts, backoffice.WithDeliveryLog(deliveryLog))
	}

	queue := gojob.NewMemoryQueue(cfg.QueueSize)
	defer queue.Close()
	facadeOpts = append(facadeOpts, backoffice.WithJobEnqueuer(gojob.NewEnqueuerAdapter(queue)))

	app, err := backoffice.New(backoffice.Config{}, serviceOpts, facadeOpts...)
	if err != nil {
		return err
	}

	registry := gocommand.NewRegistryAdapter(command.NewRegistry())
	subs, err := app.RegisterCommands(registry)
	if err != nil {
		return err
	}
	defer subs.Unsubscribe()
	if err := registry.Initialize(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	goRun := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background task failed", "task", name, "error", err)
			}
		}()
	}

	snapshot := app.Start(ctx)
	defer app.Stop()
	logger.Info("agenda loaded", "category", string(snapshot.Category), "state", string(snapshot.State), "events", len(snapshot.Events))

	goRun("endpoints.watch", app.Service().WatchEndpoints)

	worker := app.DeliveryWorker(
		gojob.NewDequeuerAdapter(queue),
		gojob.WithWorkerHook(gologger.NewJobLogHook(app.Service().NamedLogger("jobs"))),
	)
	goRun("jobs.worker", worker.Run)

	if deliveryLog != nil {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc("@every 1h", func() {
			pruned, err := deliveryLog.Prune(ctx, cfg.DeliveryLogTTL)
			if err != nil {
				logger.Warn("delivery log prune failed", "error", err)
				return
			}
			logger.Debug("delivery log pruned", "rows", pruned)
		}); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router().Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("backoffice listening", "addr", cfg.Addr, "store", cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	wg.Wait()
	return nil
}

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "go-backoffice" }

// openPersistence opens the configured database and applies the embedded
// migrations for its dialect.
func openPersistence(ctx context.Context, cfg settings) (*persistence.Client, error) {
	driver, dialectName := "sqlite3", backofficemigrations.DialectSQLite
	var dialect schema.Dialect = sqlitedialect.New()
	if cfg.Store == storePostgres {
		driver, dialectName = "postgres", backofficemigrations.DialectPostgres
		dialect = pgdialect.New()
	}

	sqlDB, err := sql.Open(driver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("backoffice: open %s: %w", driver, err)
	}
	if cfg.Store == storeSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: driver, server: cfg.DatabaseURL, debug: cfg.Debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("backoffice: persistence client: %w", err)
	}

	_, err = backofficemigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != dialectName {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, backofficemigrations.ForDialects(dialectName))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("backoffice: migrate: %w", err)
	}
	return client, nil
}
