package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/reconnity/easm/internal/config"
	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/models"
	"github.com/reconnity/easm/internal/queue"
	"github.com/reconnity/easm/internal/scanner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.ScannerType == "" {
		log.Fatal("SCANNER_TYPE must be set (port-fast, port-deep or vuln)")
	}

	appLog := logger.NewLeveled("SCANNER:"+cfg.ScannerType, logger.ParseLevel(cfg.LogLevel))

	var runner scanner.Runner
	switch cfg.ScannerType {
	case models.ScannerPortFast:
		runner = scanner.NewMasscan(appLog)
	case models.ScannerPortDeep:
		runner = scanner.NewNmap(appLog)
	case models.ScannerVuln:
		runner = scanner.NewNuclei(appLog)
	default:
		log.Fatalf("Unknown scanner type: %s", cfg.ScannerType)
	}

	q, err := queue.New(cfg.RedisURL, appLog)
	if err != nil {
		log.Fatalf("Failed to connect to job queue: %v", err)
	}
	defer q.Close()

	scanWorker, err := scanner.NewWorker(runner, q, cfg.ScannerTimeouts[cfg.ScannerType], appLog)
	if err != nil {
		log.Fatalf("Failed to build scanner worker: %v", err)
	}

	// The scan itself is bounded per job inside HandleRunScan, so the pool
	// runs without an extra handler timeout.
	pool := queue.NewWorker(q, scanWorker.Spec().Queue, cfg.WorkerConcurrency, 0, appLog)
	pool.Register(scanWorker.Spec().Function, scanWorker.HandleRunScan)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLog.Info("Scanner worker starting", "type", cfg.ScannerType, "queue", scanWorker.Spec().Queue)
	if err := pool.Run(ctx); err != nil {
		log.Fatalf("Worker pool failed: %v", err)
	}
}
