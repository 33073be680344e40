package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// migrationLockID is an arbitrary but consistent advisory lock key that
// prevents concurrent replicas from racing the schema setup.
const migrationLockID = 42100901

// RunMigrations creates the scan store schema if it does not exist yet.
func RunMigrations(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Println("Starting scan store migrations...")

	if _, err := db.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := db.Exec("SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Printf("Failed to release migration lock: %v", err)
		}
	}()

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			id UUID PRIMARY KEY,
			target VARCHAR(255) NOT NULL,
			scanner VARCHAR(64) NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'queued',
			options JSONB,
			results JSONB,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_target ON scans(target)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status)`,

		`CREATE TABLE IF NOT EXISTS findings (
			id UUID PRIMARY KEY,
			scan_id UUID NOT NULL REFERENCES scans(id),
			target VARCHAR(255) NOT NULL,
			finding_type VARCHAR(32) NOT NULL,
			severity VARCHAR(16) NOT NULL DEFAULT 'info',
			title VARCHAR(255) NOT NULL,
			description TEXT,
			port INTEGER,
			service VARCHAR(128),
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_findings_scan_id ON findings(scan_id)`,
		`CREATE INDEX IF NOT EXISTS idx_findings_target ON findings(target)`,

		`CREATE TABLE IF NOT EXISTS assets (
			id UUID PRIMARY KEY,
			target VARCHAR(255) NOT NULL UNIQUE,
			asset_type VARCHAR(32) NOT NULL DEFAULT 'unknown',
			status VARCHAR(32) NOT NULL DEFAULT 'active',
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS risk_scores (
			id UUID PRIMARY KEY,
			target VARCHAR(255) NOT NULL UNIQUE,
			score INTEGER NOT NULL CHECK (score >= 0 AND score <= 100),
			factors JSONB,
			calculated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	log.Println("Scan store migrations completed")
	return nil
}
