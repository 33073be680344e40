package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reconnity/easm/internal/models"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create inserts a new scan record in status queued
func (r *ScanRepository) Create(ctx context.Context, scan *models.Scan) error {
	query := `
		INSERT INTO scans (id, target, scanner, status, options, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	optionsJSON, err := json.Marshal(scan.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		scan.ID,
		scan.Target,
		scan.Scanner,
		scan.Status,
		optionsJSON,
		scan.CreatedAt,
	)
	return err
}

// GetByID retrieves a scan by its ID
func (r *ScanRepository) GetByID(ctx context.Context, scanID uuid.UUID) (*models.Scan, error) {
	return scanScanRow(r.db.QueryRowContext(ctx, scanSelectQuery+` WHERE id = $1`, scanID))
}

// GetForUpdateTx retrieves a scan inside tx, acquiring a row lock so that
// concurrent terminal transitions for the same scan serialize.
func (r *ScanRepository) GetForUpdateTx(ctx context.Context, tx *sql.Tx, scanID uuid.UUID) (*models.Scan, error) {
	return scanScanRow(tx.QueryRowContext(ctx, scanSelectQuery+` WHERE id = $1 FOR UPDATE`, scanID))
}

// CompleteTx transitions the scan to completed with its results
func (r *ScanRepository) CompleteTx(ctx context.Context, tx *sql.Tx, scanID uuid.UUID, results *models.ScanResults, completedAt time.Time) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	query := `
		UPDATE scans SET status = $2, results = $3, completed_at = $4
		WHERE id = $1`
	_, err = tx.ExecContext(ctx, query, scanID, models.ScanStatusCompleted, resultsJSON, completedAt)
	return err
}

// FailTx transitions the scan to failed with an error message
func (r *ScanRepository) FailTx(ctx context.Context, tx *sql.Tx, scanID uuid.UUID, errorMessage string, completedAt time.Time) error {
	query := `
		UPDATE scans SET status = $2, error_message = $3, completed_at = $4
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, query, scanID, models.ScanStatusFailed, errorMessage, completedAt)
	return err
}

const scanSelectQuery = `
	SELECT id, target, scanner, status, options, results, error_message,
	       created_at, started_at, completed_at
	FROM scans`

func scanScanRow(row *sql.Row) (*models.Scan, error) {
	scan := &models.Scan{}
	var optionsJSON, resultsJSON []byte
	var errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&scan.ID,
		&scan.Target,
		&scan.Scanner,
		&scan.Status,
		&optionsJSON,
		&resultsJSON,
		&errorMessage,
		&scan.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if errorMessage.Valid {
		scan.ErrorMessage = &errorMessage.String
	}
	if startedAt.Valid {
		scan.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		scan.CompletedAt = &completedAt.Time
	}
	if len(optionsJSON) > 0 {
		json.Unmarshal(optionsJSON, &scan.Options)
	}
	if len(resultsJSON) > 0 {
		results := &models.ScanResults{}
		if err := json.Unmarshal(resultsJSON, results); err == nil {
			scan.Results = results
		}
	}

	return scan, nil
}
