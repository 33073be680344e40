package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity levels for findings
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// Finding types
const (
	FindingTypeOpenPort      = "open_port"
	FindingTypeService       = "service"
	FindingTypeVulnerability = "vulnerability"
)

// ValidSeverity reports whether s is a known severity level.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Finding is an atomic observation about a target extracted from a scan result
type Finding struct {
	ID          uuid.UUID              `json:"id"`
	ScanID      uuid.UUID              `json:"scan_id"`
	Target      string                 `json:"target"`
	FindingType string                 `json:"finding_type"`
	Severity    string                 `json:"severity"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Port        *int                   `json:"port,omitempty"`
	Service     *string                `json:"service,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	Verified    bool                   `json:"verified"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
