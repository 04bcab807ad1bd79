// Package wire provides dependency injection for the rollout CLI.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"database/sql"
	"io"
	"os"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	cliadapter "github.com/example/rollout/internal/adapters/cli"
	"github.com/example/rollout/internal/adapters/memory"
	redisadapter "github.com/example/rollout/internal/adapters/redis"
	"github.com/example/rollout/internal/adapters/sqlite"
	"github.com/example/rollout/internal/app"
	"github.com/example/rollout/internal/config"
	"github.com/example/rollout/internal/db"
	"github.com/example/rollout/internal/ports/primary"
	"github.com/example/rollout/internal/ports/secondary"
)

var (
	cfg      *config.Config
	logger   *logrus.Logger
	database *sql.DB
	rdb      *goredis.Client

	transactionFeed  *sqlite.TransactionFeed
	cityService      primary.CityService
	ledgerService    primary.LedgerService
	reconcileService primary.ReconcileService
	lifecycleService primary.LifecycleService

	once sync.Once
)

// Config returns the loaded configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// Logger returns the process logger.
func Logger() *logrus.Logger {
	once.Do(initServices)
	return logger
}

// Database returns the shared database handle.
func Database() *sql.DB {
	once.Do(initServices)
	return database
}

// TransactionFeed returns the sqlite-backed transaction feed.
func TransactionFeed() *sqlite.TransactionFeed {
	once.Do(initServices)
	return transactionFeed
}

// CityService returns the singleton CityService instance.
func CityService() primary.CityService {
	once.Do(initServices)
	return cityService
}

// LedgerService returns the singleton LedgerService instance.
func LedgerService() primary.LedgerService {
	once.Do(initServices)
	return ledgerService
}

// ReconcileService returns the singleton ReconcileService instance.
func ReconcileService() primary.ReconcileService {
	once.Do(initServices)
	return reconcileService
}

// LifecycleService returns the singleton LifecycleService instance.
func LifecycleService() primary.LifecycleService {
	once.Do(initServices)
	return lifecycleService
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}
	logger, err = config.NewLogger(cfg, os.Stderr)
	if err != nil {
		logrus.Fatalf("failed to build logger: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("failed to resolve time zone: %v", err)
	}

	ctx := context.Background()
	database, err = db.Open(ctx, db.Options{
		Path:           cfg.DBPath,
		BusyTimeout:    cfg.BusyTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
	})
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}

	fallback, err := config.LoadFallbackTable(cfg.FallbackFile)
	if err != nil {
		logger.Fatalf("failed to load fallback table: %v", err)
	}

	locker, err := newLocker(ctx)
	if err != nil {
		logger.Fatalf("failed to initialize city locks: %v", err)
	}

	// Create repository adapters (secondary ports) - sqlite adapters with injected DB
	cityRepo := sqlite.NewCityRepository(database)
	planRepo := sqlite.NewPlanRepository(database)
	resultsRepo := sqlite.NewResultsRepository(database)
	auditLog := sqlite.NewAuditLog(database)
	transactionFeed = sqlite.NewTransactionFeed(database)

	policy := app.CallPolicy{
		Timeout:     cfg.QueryTimeout,
		Backoff:     cfg.RetryBackoff,
		MaxAttempts: cfg.MaxAttempts,
	}

	// Create services (primary ports implementation)
	cityService = app.NewCityService(cityRepo, auditLog, locker, logger, app.CityServiceOptions{
		Policy:      policy,
		Concurrency: cfg.Concurrency,
	})
	ledgerService = app.NewLedgerService(cityRepo, planRepo, resultsRepo, auditLog, locker, logger, policy)
	reconcileService = app.NewReconcileService(cityRepo, transactionFeed, fallback, ledgerService, logger, app.ReconcileOptions{
		Policy:       policy,
		TopUpPattern: cfg.TopUpPattern,
		Location:     loc,
		Concurrency:  cfg.Concurrency,
	})
	lifecycleService = app.NewLifecycleService(cityService, cityRepo, planRepo, resultsRepo, logger, policy)
}

// newLocker returns the redis locker when an address is configured and the
// in-process one otherwise.
func newLocker(ctx context.Context) (secondary.CityLocker, error) {
	if cfg.RedisAddr == "" {
		return memory.NewCityLocker(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := redisadapter.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	rdb = client
	return redisadapter.NewCityLocker(rdb, logger, redisadapter.Options{
		TTL:  cfg.LockTTL,
		Wait: cfg.QueryTimeout,
	}), nil
}

// Close releases the database and redis connections if they were opened.
func Close() {
	if database != nil {
		_ = database.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

// CityAdapter returns a new CityAdapter writing to stdout.
func CityAdapter() *cliadapter.CityAdapter {
	return CityAdapterWithOutput(os.Stdout)
}

// CityAdapterWithOutput returns a new CityAdapter writing to the given output.
func CityAdapterWithOutput(out io.Writer) *cliadapter.CityAdapter {
	once.Do(initServices)
	return cliadapter.NewCityAdapter(cityService, lifecycleService, out)
}

// LedgerAdapter returns a new LedgerAdapter writing to stdout.
func LedgerAdapter() *cliadapter.LedgerAdapter {
	once.Do(initServices)
	return cliadapter.NewLedgerAdapter(ledgerService, os.Stdout)
}

// ReconcileAdapter returns a new ReconcileAdapter writing to stdout.
func ReconcileAdapter() *cliadapter.ReconcileAdapter {
	once.Do(initServices)
	return cliadapter.NewReconcileAdapter(reconcileService, os.Stdout)
}
