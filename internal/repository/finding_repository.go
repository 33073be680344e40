package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/reconnity/easm/internal/models"
)

type FindingRepository struct {
	db *sql.DB
}

func NewFindingRepository(db *sql.DB) *FindingRepository {
	return &FindingRepository{db: db}
}

// InsertTx inserts a finding inside the completion transaction so findings
// become visible together with the scan's status transition.
func (r *FindingRepository) InsertTx(ctx context.Context, tx *sql.Tx, finding *models.Finding) error {
	query := `
		INSERT INTO findings (
			id, scan_id, target, finding_type, severity, title, description,
			port, service, verified, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	metadataJSON, err := json.Marshal(finding.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal finding metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, query,
		finding.ID,
		finding.ScanID,
		finding.Target,
		finding.FindingType,
		finding.Severity,
		finding.Title,
		finding.Description,
		finding.Port,
		finding.Service,
		finding.Verified,
		metadataJSON,
		finding.CreatedAt,
	)
	return err
}

// ListByScanID returns all findings recorded for a scan
func (r *FindingRepository) ListByScanID(ctx context.Context, scanID uuid.UUID) ([]models.Finding, error) {
	query := `
		SELECT id, scan_id, target, finding_type, severity, title, description,
		       port, service, verified, metadata, created_at
		FROM findings
		WHERE scan_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []models.Finding
	for rows.Next() {
		var f models.Finding
		var description sql.NullString
		var port sql.NullInt64
		var service sql.NullString
		var metadataJSON []byte

		err := rows.Scan(
			&f.ID,
			&f.ScanID,
			&f.Target,
			&f.FindingType,
			&f.Severity,
			&f.Title,
			&description,
			&port,
			&service,
			&f.Verified,
			&metadataJSON,
			&f.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if description.Valid {
			f.Description = description.String
		}
		if port.Valid {
			p := int(port.Int64)
			f.Port = &p
		}
		if service.Valid {
			f.Service = &service.String
		}
		if len(metadataJSON) > 0 {
			json.Unmarshal(metadataJSON, &f.Metadata)
		}

		findings = append(findings, f)
	}

	return findings, rows.Err()
}
