package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Supported scanner types (closed set)
const (
	ScannerPortFast = "port-fast"
	ScannerPortDeep = "port-deep"
	ScannerVuln     = "vuln"
)

// SupportedScanner reports whether the scanner tag is in the closed set.
func SupportedScanner(scanner string) bool {
	switch scanner {
	case ScannerPortFast, ScannerPortDeep, ScannerVuln:
		return true
	}
	return false
}

// PortFastOptions are the options accepted by the masscan-backed port-fast scanner
type PortFastOptions struct {
	Ports   string `json:"ports,omitempty"`
	Rate    int    `json:"rate,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

// PortDeepOptions are the options accepted by the nmap-backed port-deep scanner
type PortDeepOptions struct {
	Ports            string `json:"ports,omitempty"`
	Timing           *int   `json:"timing,omitempty"`
	OSDetection      bool   `json:"os_detection,omitempty"`
	ServiceDetection *bool  `json:"service_detection,omitempty"`
	ScriptScan       bool   `json:"script_scan,omitempty"`
	Timeout          int    `json:"timeout,omitempty"`
}

// VulnOptions are the options accepted by the nuclei-backed vulnerability scanner
type VulnOptions struct {
	Templates   []string `json:"templates,omitempty"`
	Severity    []string `json:"severity,omitempty"`
	Rate        int      `json:"rate,omitempty"`
	Concurrency int      `json:"concurrency,omitempty"`
	Timeout     int      `json:"timeout,omitempty"`
}

// Nuclei template categories accepted by the vuln scanner
var vulnTemplateCategories = map[string]bool{
	"cves":      true,
	"dns":       true,
	"file":      true,
	"headless":  true,
	"http":      true,
	"network":   true,
	"ssl":       true,
	"workflows": true,
}

// ValidateScanOptions validates the free-form options map against the typed
// option schema of the given scanner. Unknown keys are rejected.
func ValidateScanOptions(scanner string, options map[string]interface{}) error {
	if options == nil {
		return nil
	}

	raw, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	switch scanner {
	case ScannerPortFast:
		var opts PortFastOptions
		if err := dec.Decode(&opts); err != nil {
			return fmt.Errorf("invalid %s options: %w", scanner, err)
		}
		if opts.Rate < 0 {
			return fmt.Errorf("invalid %s options: rate must be positive", scanner)
		}
	case ScannerPortDeep:
		var opts PortDeepOptions
		if err := dec.Decode(&opts); err != nil {
			return fmt.Errorf("invalid %s options: %w", scanner, err)
		}
		if opts.Timing != nil && (*opts.Timing < 0 || *opts.Timing > 5) {
			return fmt.Errorf("invalid %s options: timing must be between 0 and 5", scanner)
		}
	case ScannerVuln:
		var opts VulnOptions
		if err := dec.Decode(&opts); err != nil {
			return fmt.Errorf("invalid %s options: %w", scanner, err)
		}
		for _, tmpl := range opts.Templates {
			if !vulnTemplateCategories[tmpl] {
				return fmt.Errorf("invalid %s options: unknown template category %q", scanner, tmpl)
			}
		}
		for _, sev := range opts.Severity {
			if !ValidSeverity(sev) {
				return fmt.Errorf("invalid %s options: unknown severity %q", scanner, sev)
			}
		}
	default:
		return fmt.Errorf("unsupported scanner: %s", scanner)
	}

	if timeout, ok := options["timeout"]; ok {
		if v, ok := timeout.(float64); ok && v <= 0 {
			return fmt.Errorf("invalid %s options: timeout must be positive", scanner)
		}
	}

	return nil
}
