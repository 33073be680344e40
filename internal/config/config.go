package config

import (
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	Environment string
	LogLevel    string

	// Queue Configuration
	CoreJobTimeout    time.Duration
	WorkerConcurrency int

	// Scanner Configuration
	ScannerType     string
	ScannerTimeouts map[string]time.Duration

	// Risk Engine
	RiskScoreTTL time.Duration
}

func Load() (*Config, error) {
	// Use the centralized environment loader
	LoadEnvOnce()

	coreJobTimeout, _ := strconv.Atoi(GetEnvWithFallback("CORE_JOB_TIMEOUT", "300"))
	workerConcurrency, _ := strconv.Atoi(GetEnvWithFallback("WORKER_CONCURRENCY", "4"))
	riskScoreTTLDays, _ := strconv.Atoi(GetEnvWithFallback("RISK_SCORE_TTL_DAYS", "30"))
	portFastTimeout, _ := strconv.Atoi(GetEnvWithFallback("PORT_FAST_TIMEOUT", "120"))
	portDeepTimeout, _ := strconv.Atoi(GetEnvWithFallback("PORT_DEEP_TIMEOUT", "300"))
	vulnTimeout, _ := strconv.Atoi(GetEnvWithFallback("VULN_TIMEOUT", "600"))

	return &Config{
		Port:        GetEnvWithFallback("PORT", "8080"),
		DatabaseURL: GetEnvWithFallback("DATABASE_URL", "postgresql://localhost:5432/easm?sslmode=disable"),
		RedisURL:    GetEnvWithFallback("REDIS_URL", "redis://localhost:6379/0"),
		Environment: GetEnvWithFallback("ENVIRONMENT", "development"),
		LogLevel:    GetEnvWithFallback("LOG_LEVEL", "info"),

		CoreJobTimeout:    time.Duration(coreJobTimeout) * time.Second,
		WorkerConcurrency: workerConcurrency,

		ScannerType: GetEnvWithFallback("SCANNER_TYPE", ""),
		ScannerTimeouts: map[string]time.Duration{
			"port-fast": time.Duration(portFastTimeout) * time.Second,
			"port-deep": time.Duration(portDeepTimeout) * time.Second,
			"vuln":      time.Duration(vulnTimeout) * time.Second,
		},

		RiskScoreTTL: time.Duration(riskScoreTTLDays) * 24 * time.Hour,
	}, nil
}
