package models

import (
	"time"

	"github.com/google/uuid"
)

// Asset types
const (
	AssetTypeIP      = "ip"
	AssetTypeDomain  = "domain"
	AssetTypeURL     = "url"
	AssetTypeUnknown = "unknown"
)

// Asset is a deduplicated record of a target ever seen by the system.
// At most one asset exists per target.
type Asset struct {
	ID        uuid.UUID              `json:"id"`
	Target    string                 `json:"target"`
	AssetType string                 `json:"asset_type"`
	Status    string                 `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
