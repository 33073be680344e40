package config

import (
	"testing"
	"time"
)

func TestGetEnvWithFallback(t *testing.T) {
	t.Setenv("EASM_CONFIG_TEST_KEY", "from-env")
	if got := GetEnvWithFallback("EASM_CONFIG_TEST_KEY", "fallback"); got != "from-env" {
		t.Errorf("Expected from-env, got %s", got)
	}

	t.Setenv("EASM_CONFIG_TEST_EMPTY", "")
	if got := GetEnvWithFallback("EASM_CONFIG_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback for empty value, got %s", got)
	}
	if got := GetEnvWithFallback("EASM_CONFIG_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback for unset key, got %s", got)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	t.Setenv("CORE_JOB_TIMEOUT", "120")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("RISK_SCORE_TTL_DAYS", "7")
	t.Setenv("PORT_FAST_TIMEOUT", "45")
	t.Setenv("SCANNER_TYPE", "port-fast")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.CoreJobTimeout != 120*time.Second {
		t.Errorf("Expected 120s core job timeout, got %v", cfg.CoreJobTimeout)
	}
	if cfg.WorkerConcurrency != 8 {
		t.Errorf("Expected concurrency 8, got %d", cfg.WorkerConcurrency)
	}
	if cfg.RiskScoreTTL != 7*24*time.Hour {
		t.Errorf("Expected 7-day risk TTL, got %v", cfg.RiskScoreTTL)
	}
	if cfg.ScannerTimeouts["port-fast"] != 45*time.Second {
		t.Errorf("Expected 45s port-fast timeout, got %v", cfg.ScannerTimeouts["port-fast"])
	}
	if cfg.ScannerType != "port-fast" {
		t.Errorf("Expected scanner type port-fast, got %s", cfg.ScannerType)
	}
}
