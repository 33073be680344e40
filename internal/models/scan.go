package models

import (
	"time"

	"github.com/google/uuid"
)

// Scan lifecycle states. Transitions are monotone:
// queued -> running -> completed|failed.
const (
	ScanStatusQueued    = "queued"
	ScanStatusRunning   = "running"
	ScanStatusCompleted = "completed"
	ScanStatusFailed    = "failed"
)

// Scan represents a single request to evaluate one target with one scanner type
type Scan struct {
	ID           uuid.UUID              `json:"id"`
	Target       string                 `json:"target"`
	Scanner      string                 `json:"scanner"`
	Status       string                 `json:"status"`
	Options      map[string]interface{} `json:"options,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	Results      *ScanResults           `json:"results,omitempty"`
	ErrorMessage *string                `json:"error_message,omitempty"`
}

// IsTerminal reports whether the scan reached a final state.
func (s *Scan) IsTerminal() bool {
	return s.Status == ScanStatusCompleted || s.Status == ScanStatusFailed
}

// Progress maps the scan status to the coarse public progress value.
func (s *Scan) Progress() int {
	switch s.Status {
	case ScanStatusCompleted, ScanStatusFailed:
		return 100
	case ScanStatusRunning:
		return 50
	default:
		return 0
	}
}

// ScanResults is the normalized payload every scanner worker emits
type ScanResults struct {
	Scanner         string                 `json:"scanner"`
	Target          string                 `json:"target"`
	ScanID          string                 `json:"scan_id"`
	ScanDuration    float64                `json:"scan_duration"`
	Timestamp       float64                `json:"timestamp"`
	OpenPorts       []int                  `json:"open_ports"`
	Services        map[string]ServiceInfo `json:"services"`
	Vulnerabilities []VulnerabilityItem    `json:"vulnerabilities,omitempty"`
	OSInfo          *OSInfo                `json:"os_info,omitempty"`
	Stats           map[string]interface{} `json:"stats,omitempty"`
	RawOutput       string                 `json:"raw_output,omitempty"`
	ParseError      string                 `json:"parse_error,omitempty"`
}

// ServiceInfo describes a service detected on an open port
type ServiceInfo struct {
	Name     string `json:"name"`
	Product  string `json:"product,omitempty"`
	Version  string `json:"version,omitempty"`
	Protocol string `json:"protocol,omitempty"`
	State    string `json:"state,omitempty"`
}

// VulnerabilityItem represents a single vulnerability reported by a scanner
type VulnerabilityItem struct {
	ID          string                 `json:"id,omitempty"`
	Name        string                 `json:"name"`
	Severity    string                 `json:"severity"`
	Description string                 `json:"description,omitempty"`
	URL         string                 `json:"url,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// OSInfo holds operating system fingerprint data
type OSInfo struct {
	Name     string `json:"name"`
	Accuracy string `json:"accuracy"`
}

// ScanRequest is the body of POST /api/v1/scan
type ScanRequest struct {
	Target  string                 `json:"target" binding:"required"`
	Scanner string                 `json:"scanner" binding:"required"`
	Options map[string]interface{} `json:"options"`
}

// ScanResponse is the body returned when a scan is accepted
type ScanResponse struct {
	ScanID  string `json:"scan_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ScanStatus is the public status view of a scan
type ScanStatus struct {
	ScanID      string                 `json:"scan_id"`
	Target      string                 `json:"target"`
	Scanner     string                 `json:"scanner"`
	Status      string                 `json:"status"`
	Progress    int                    `json:"progress"`
	CreatedAt   string                 `json:"created_at"`
	StartedAt   *string                `json:"started_at,omitempty"`
	CompletedAt *string                `json:"completed_at,omitempty"`
	Options     map[string]interface{} `json:"options,omitempty"`
	Results     *ScanResults           `json:"results,omitempty"`
	Findings    []Finding              `json:"findings,omitempty"`
	RiskScore   *RiskScoreView         `json:"risk_score,omitempty"`
	Error       *string                `json:"error,omitempty"`
}
