package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"vnEquityBot/config"
	"vnEquityBot/internal/adapters/csvfeed"
	"vnEquityBot/internal/adapters/logger"
	"vnEquityBot/internal/adapters/sqlite"
	"vnEquityBot/internal/app"
	"vnEquityBot/internal/observability"
	"vnEquityBot/internal/ports"
)

func main() {
	// Cancel in-flight simulations on Ctrl-C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// runtime bundles the wired components a command works with.
type runtime struct {
	cfg     *config.Config
	logger  *logger.StdLogger
	service *app.BacktestService
	metrics *observability.Metrics
	closers []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Error(context.Background(), err, "Error during shutdown")
		}
	}
}

// setup wires configuration, logging, storage and the application service.
func setup(opts *globalOptions, withRepo, withMetrics bool) (*runtime, error) {
	// 1. Load Configuration
	cfg, err := config.LoadConfig(opts.scenario)
	if err != nil {
		log.Printf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
		return nil, err
	}
	opts.apply(cfg)

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})
	rt := &runtime{cfg: cfg, logger: appLogger}

	// 3. Initialize Bar Source (CSV Adapter)
	feed, err := csvfeed.NewFeed(csvfeed.Config{
		Dir:         cfg.DataDir,
		Logger:      appLogger,
		Concurrency: cfg.Workers,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize bar source")
		return nil, err
	}

	// 4. Initialize Repository (Database Adapter)
	var repo ports.RunRepository
	if withRepo {
		sqliteRepo, err := sqlite.NewRepository(sqlite.Config{
			DBPath: cfg.DBPath,
			Logger: appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
			return nil, err
		}
		rt.closers = append(rt.closers, sqliteRepo.Close)
		repo = sqliteRepo
		appLogger.Info(context.Background(), "Database repository initialized")
	}

	// 5. Initialize Metrics
	if withMetrics {
		rt.metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	// 6. Initialize Application Service
	rt.service, err = app.NewBacktestService(cfg, appLogger, feed, repo, rt.metrics)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize backtest service")
		rt.Close()
		return nil, err
	}
	return rt, nil
}
