package models

import (
	"time"

	"github.com/google/uuid"
)

// RiskScore is a bounded numeric summary of a target's current risk posture.
// At most one risk score exists per target; it is replaced on every successful
// scan completion.
type RiskScore struct {
	ID           uuid.UUID          `json:"id"`
	Target       string             `json:"target"`
	Score        int                `json:"score"`
	Factors      map[string]float64 `json:"factors"`
	CalculatedAt time.Time          `json:"calculated_at"`
	ExpiresAt    time.Time          `json:"expires_at"`
}

// RiskScoreView is the public representation of a risk score
type RiskScoreView struct {
	Score        int                `json:"score"`
	Level        string             `json:"level"`
	Factors      map[string]float64 `json:"factors"`
	CalculatedAt string             `json:"calculated_at"`
}
