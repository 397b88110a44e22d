package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finbridge/ledger-rest/internal/adapters/handler"
	"github.com/finbridge/ledger-rest/internal/adapters/ledger"
	"github.com/finbridge/ledger-rest/internal/adapters/memory"
	"github.com/finbridge/ledger-rest/internal/adapters/postgres"
	"github.com/finbridge/ledger-rest/internal/config"
	"github.com/finbridge/ledger-rest/internal/core/ports"
	"github.com/finbridge/ledger-rest/internal/core/service"
	"github.com/finbridge/ledger-rest/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting ledger-rest",
		"port", cfg.Server.Port,
		"ledger_rpc", cfg.Ledger.RPCURL,
		"store", cfg.Store.Driver,
	)

	ctx := context.Background()

	gate := ledger.NewGate()
	ledgerClient := ledger.NewClient(cfg.Ledger, gate, logger)

	var store ports.ResourceStore
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := postgres.InitSchema(ctx, pool); err != nil {
			logger.Error("failed to initialize schema", "error", err)
			os.Exit(1)
		}
		store = postgres.NewStore(pool, cfg.Store.LeaseTTL)
	default:
		store = memory.NewStore(cfg.Store.LeaseTTL)
	}

	sequencer := service.NewSequencer(ledgerClient)
	submissions := service.NewSubmissionService(
		store,
		ledgerClient,
		gate,
		sequencer,
		service.SubmitConfig{
			MaxAttempts:   cfg.Retry.MaxAttempts,
			BaseDelay:     cfg.Retry.BaseDelay,
			ExpiryLedgers: cfg.Ledger.ExpiryLedgers,
		},
		ledger.IsTransient,
		logger,
	)
	notifications := service.NewNotificationService(store, ledgerClient, gate, logger)
	queries := service.NewQueryService(ledgerClient, gate)

	h := handler.NewHandler(submissions, notifications, queries, gate, logger)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      h.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	resolverWorker := worker.NewResolverWorker(
		store,
		gate,
		notifications,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		cfg.Store.Retention,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go ledgerClient.RunConnectivityProbe(workerCtx, cfg.Ledger.PingInterval)
	go resolverWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
