package config

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var envOnce sync.Once

// LoadEnvOnce loads the .env file at most once per process, so the core and
// scanner binaries can both call it without clobbering each other's state.
func LoadEnvOnce() {
	envOnce.Do(loadEnvironment)
}

func loadEnvironment() {
	// .env is a local-development convenience; deployed services get their
	// configuration from real environment variables.
	envPaths := []string{
		".env",
		"../.env",
		filepath.Join(os.Getenv("APP_ROOT"), ".env"),
	}

	for _, path := range envPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			log.Printf("Environment loaded from: %s", path)
			return
		}
	}

	if !isContainerEnvironment() {
		log.Println("No .env file found - using environment variables or defaults")
	}
}

// isContainerEnvironment reports whether the process appears to run inside a
// container, where a missing .env file is expected rather than a mistake.
func isContainerEnvironment() bool {
	for _, marker := range []string{"/.dockerenv", "/run/.containerenv"} {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	// Both services require these; having them set without a .env file means
	// the environment was provisioned by a deployment.
	return os.Getenv("DATABASE_URL") != "" && os.Getenv("REDIS_URL") != ""
}

// GetEnvWithFallback returns the named environment variable, or the fallback
// when it is unset or empty.
func GetEnvWithFallback(key, fallback string) string {
	LoadEnvOnce()

	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
