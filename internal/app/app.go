package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/fx"
	"go.uber.org/zap"

	dwollaAdapter "github.com/jonathanmorav/unified-dashboard/internal/adapter/provider/dwolla"
	"github.com/jonathanmorav/unified-dashboard/internal/adapter/repository/postgres"
	"github.com/jonathanmorav/unified-dashboard/internal/api"
	"github.com/jonathanmorav/unified-dashboard/internal/config"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/customer"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/event"
	journeydomain "github.com/jonathanmorav/unified-dashboard/internal/domain/journey"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/provider"
	recondomain "github.com/jonathanmorav/unified-dashboard/internal/domain/reconciliation"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/transfer"
	"github.com/jonathanmorav/unified-dashboard/internal/journey"
	"github.com/jonathanmorav/unified-dashboard/internal/reconciliation"
	"github.com/jonathanmorav/unified-dashboard/internal/webhook"
	"github.com/jonathanmorav/unified-dashboard/pkg/db"
	"github.com/jonathanmorav/unified-dashboard/pkg/dwollaclient"
	zaplog "github.com/jonathanmorav/unified-dashboard/pkg/log"
	"github.com/jonathanmorav/unified-dashboard/pkg/snowflake"
	"github.com/jonathanmorav/unified-dashboard/sql/migrations"
)

// RunServer starts the HTTP server and background workers.
func RunServer() {
	app := fx.New(
		fx.Provide(
			// Config
			config.Load,
			newDBConfig,

			// Infrastructure (Adapters)
			dwollaclient.NewFromEnv,

			// Domain Adapters (Bind Interfaces)
			fx.Annotate(
				postgres.NewEventRepository,
				fx.As(new(event.Repository)),
			),
			fx.Annotate(
				postgres.NewTransferRepository,
				fx.As(new(transfer.Repository)),
			),
			fx.Annotate(
				postgres.NewCustomerRepository,
				fx.As(new(customer.Repository)),
			),
			fx.Annotate(
				postgres.NewJourneyRepository,
				fx.As(new(journeydomain.Repository)),
			),
			fx.Annotate(
				postgres.NewReconciliationRepository,
				fx.As(new(recondomain.Repository)),
			),
			fx.Annotate(
				dwollaAdapter.NewAdapter,
				fx.As(new(provider.Source)),
			),

			// Pipeline
			journey.NewEngine,
			journey.NewSweeper,
			webhook.NewDispatcher,
			webhook.NewQueueProcessor,
			reconciliation.NewEngine,
			reconciliation.NewReporter,

			// API
			api.NewRouter,
		),
		db.Module,        // Database Module
		snowflake.Module, // Snowflake ID Module
		zaplog.Module,    // Logger Module
		fx.Invoke(registerHooks),
	)

	app.Run()
}

// RunMigrations executes database migrations (up or down).
func RunMigrations(command string) error {
	if command == "" {
		command = "up"
	}

	cfg := config.Load()
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting database migration...", zap.String("command", command))

	dbURL := newDBConfig(cfg).URL("pgx5")

	d, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migration files: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, dbURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Info("Migration up applied successfully")
	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("Migration down applied successfully")
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}

	return nil
}

// ReconciliationOptions are the window parameters for a one-off sweep
// started from the CLI.
type ReconciliationOptions struct {
	ResourceType string
	DaysBack     int
	Start        time.Time
	End          time.Time
}

// RunReconciliation performs a reconciliation sweep outside the server
// process, for cron and operator use.
func RunReconciliation(ctx context.Context, opts ReconciliationOptions) error {
	cfg := config.Load()
	logger, err := zaplog.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	gdb, err := db.NewGorm(newDBConfig(cfg), logger)
	if err != nil {
		return err
	}

	client := dwollaclient.NewFromEnv()

	ids, err := snowflake.NewNode()
	if err != nil {
		return err
	}

	engine := reconciliation.NewEngine(
		cfg,
		postgres.NewReconciliationRepository(gdb),
		postgres.NewTransferRepository(gdb),
		dwollaAdapter.NewAdapter(client),
		ids,
		logger,
	)

	if opts.DaysBack > 0 {
		_, err = engine.PerformCatchUpReconciliation(ctx, opts.ResourceType, opts.DaysBack)
		return err
	}
	_, err = engine.PerformBatchReconciliation(ctx, opts.ResourceType, opts.Start, opts.End, nil)
	return err
}

func registerHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	router *api.Router,
	queue *webhook.QueueProcessor,
	sweeper *journey.Sweeper,
	logger *zap.Logger,
) {
	var sweeperCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting HTTP server", zap.String("port", cfg.Port))

			if cfg.QueueAutoStart {
				queue.Start(context.Background())
			}

			sweeperCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			sweeperCancel = cancel
			go sweeper.Run(sweeperCtx)

			go func() {
				if err := router.Run(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Server failed to start", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server gracefully...")

			queue.Stop()
			if sweeperCancel != nil {
				sweeperCancel()
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := router.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", zap.Error(err))
				return err
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		},
	})
}

func newDBConfig(cfg *config.Config) db.Config {
	return db.Config{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		SSLMode:         cfg.DBSSLMode,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}
}
