package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/reconnity/easm/internal/models"
)

type AssetRepository struct {
	db *sql.DB
}

func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// UpsertTx creates the asset for a target or refreshes an existing one.
// The unique constraint on target serializes concurrent upserts; on conflict
// only the last-scan metadata is merged so first-scan provenance survives.
func (r *AssetRepository) UpsertTx(ctx context.Context, tx *sql.Tx, asset *models.Asset, updateMetadata map[string]interface{}) error {
	insertJSON, err := json.Marshal(asset.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal asset metadata: %w", err)
	}
	updateJSON, err := json.Marshal(updateMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal asset update metadata: %w", err)
	}

	query := `
		INSERT INTO assets (id, target, asset_type, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (target) DO UPDATE
		SET updated_at = EXCLUDED.updated_at,
		    metadata = COALESCE(assets.metadata, '{}'::jsonb) || $7::jsonb`

	_, err = tx.ExecContext(ctx, query,
		asset.ID,
		asset.Target,
		asset.AssetType,
		asset.Status,
		insertJSON,
		asset.CreatedAt,
		updateJSON,
	)
	return err
}

// GetByTarget returns the asset for a target, if one exists
func (r *AssetRepository) GetByTarget(ctx context.Context, target string) (*models.Asset, error) {
	query := `
		SELECT id, target, asset_type, status, metadata, created_at, updated_at
		FROM assets
		WHERE target = $1`

	asset := &models.Asset{}
	var metadataJSON []byte

	err := r.db.QueryRowContext(ctx, query, target).Scan(
		&asset.ID,
		&asset.Target,
		&asset.AssetType,
		&asset.Status,
		&metadataJSON,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		json.Unmarshal(metadataJSON, &asset.Metadata)
	}

	return asset, nil
}
