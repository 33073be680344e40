package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/reconnity/easm/internal/api"
	"github.com/reconnity/easm/internal/config"
	"github.com/reconnity/easm/internal/database"
	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/queue"
	"github.com/reconnity/easm/internal/scanner"
	"github.com/reconnity/easm/internal/service"
	"github.com/reconnity/easm/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog := logger.NewLeveled("CORE", logger.ParseLevel(cfg.LogLevel))

	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	q, err := queue.New(cfg.RedisURL, appLog)
	if err != nil {
		log.Fatalf("Failed to connect to job queue: %v", err)
	}
	defer q.Close()

	scanService := service.NewScanService(db, q, cfg.RiskScoreTTL, appLog)
	dispatcher := tasks.NewDispatcher(q, appLog)
	processor := tasks.NewResultProcessor(scanService, appLog)

	worker := queue.NewWorker(q, queue.CoreQueue, cfg.WorkerConcurrency, cfg.CoreJobTimeout, appLog)
	worker.Register(queue.FunctionScanAsset, dispatcher.HandleScanAsset)
	worker.Register(queue.FunctionProcessScanResult, processor.HandleProcessScanResult)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := worker.Run(ctx); err != nil {
			appLog.Error("Core worker pool stopped", err)
		}
	}()

	monitored := []string{queue.CoreQueue}
	for _, t := range scanner.Types() {
		if spec, ok := scanner.Lookup(t); ok {
			monitored = append(monitored, spec.Queue)
		}
	}
	go q.Monitor(ctx, monitored, 15*time.Second)

	server := api.NewServer(cfg, scanService, db, appLog)
	go func() {
		if err := server.Run(); err != nil {
			appLog.Error("HTTP server stopped", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
}
