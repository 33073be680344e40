package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/reconnity/easm/internal/models"
)

type RiskScoreRepository struct {
	db *sql.DB
}

func NewRiskScoreRepository(db *sql.DB) *RiskScoreRepository {
	return &RiskScoreRepository{db: db}
}

// UpsertTx replaces the risk score for a target. The unique constraint on
// target keeps at most one score per target.
func (r *RiskScoreRepository) UpsertTx(ctx context.Context, tx *sql.Tx, score *models.RiskScore) error {
	factorsJSON, err := json.Marshal(score.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal risk factors: %w", err)
	}

	query := `
		INSERT INTO risk_scores (id, target, score, factors, calculated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (target) DO UPDATE
		SET score = EXCLUDED.score,
		    factors = EXCLUDED.factors,
		    calculated_at = EXCLUDED.calculated_at,
		    expires_at = EXCLUDED.expires_at`

	_, err = tx.ExecContext(ctx, query,
		score.ID,
		score.Target,
		score.Score,
		factorsJSON,
		score.CalculatedAt,
		score.ExpiresAt,
	)
	return err
}

// GetByTarget returns the current risk score for a target, if one exists
func (r *RiskScoreRepository) GetByTarget(ctx context.Context, target string) (*models.RiskScore, error) {
	query := `
		SELECT id, target, score, factors, calculated_at, expires_at
		FROM risk_scores
		WHERE target = $1`

	score := &models.RiskScore{}
	var factorsJSON []byte
	var expiresAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, target).Scan(
		&score.ID,
		&score.Target,
		&score.Score,
		&factorsJSON,
		&score.CalculatedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		score.ExpiresAt = expiresAt.Time
	}
	if len(factorsJSON) > 0 {
		json.Unmarshal(factorsJSON, &score.Factors)
	}

	return score, nil
}
