package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mgavrilo/dosetrack/internal/adherence"
	"github.com/mgavrilo/dosetrack/internal/api"
	"github.com/mgavrilo/dosetrack/internal/config"
	"github.com/mgavrilo/dosetrack/internal/cron"
	"github.com/mgavrilo/dosetrack/internal/ledger"
	"github.com/mgavrilo/dosetrack/internal/stats"
	"github.com/mgavrilo/dosetrack/internal/store"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

func main() {
	flag.Parse()

	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting dosetrack",
		zap.String("version", version),
	)

	if err := config.LoadEnvFiles(); err != nil {
		logger.Warn("Failed to load .env files", zap.Error(err))
	}

	// Load configuration
	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Failed to resolve timezone", zap.Error(err))
	}

	// Initialize storage
	db, err := store.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close(db)

	ledgerStore, err := ledger.NewStore(db)
	if err != nil {
		logger.Fatal("Failed to initialize ledger", zap.Error(err))
	}

	tracker := adherence.NewTracker(ledgerStore, loc, logger)

	// Statistics: remote upstream when configured, local otherwise.
	var source stats.Source
	if cfg.Stats.BaseURL != "" {
		source = stats.NewRemoteSource(stats.RemoteConfig{
			BaseURL: cfg.Stats.BaseURL,
			Timeout: cfg.Stats.Timeout,
			RPM:     cfg.Stats.RPM,
			Burst:   cfg.Stats.Burst,
		}, logger)
		logger.Info("Using remote statistics source", zap.String("base_url", cfg.Stats.BaseURL))
	} else {
		source = stats.NewLocalSource(ledgerStore, loc, logger)
		logger.Info("Using local statistics source")
	}
	aggregator := stats.NewAggregator(source, logger)

	// Nightly aggregation
	runner := cron.NewRunner(ledgerStore, loc, cfg.Schedule.AggregateHour, logger)
	if err := runner.Start(); err != nil {
		logger.Fatal("Failed to start aggregation job", zap.Error(err))
	}
	defer runner.Stop()

	// Initialize and start API server
	server := api.New(cfg, ledgerStore, tracker, aggregator, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("address", cfg.Server.Address),
		zap.Int("port", cfg.Server.Port),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	if err := server.Shutdown(); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
}
