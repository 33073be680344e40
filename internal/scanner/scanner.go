package scanner

import (
	"context"
	"time"

	"github.com/reconnity/easm/internal/models"
)

// Spec describes one scanner type in the closed set and how jobs reach it.
type Spec struct {
	Type           string
	Queue          string
	Function       string
	Binary         string
	DefaultTimeout time.Duration
}

var specs = map[string]Spec{
	models.ScannerPortFast: {
		Type:           models.ScannerPortFast,
		Queue:          "scanner-port-fast",
		Function:       "run_port_fast",
		Binary:         "masscan",
		DefaultTimeout: 120 * time.Second,
	},
	models.ScannerPortDeep: {
		Type:           models.ScannerPortDeep,
		Queue:          "scanner-port-deep",
		Function:       "run_port_deep",
		Binary:         "nmap",
		DefaultTimeout: 300 * time.Second,
	},
	models.ScannerVuln: {
		Type:           models.ScannerVuln,
		Queue:          "scanner-vuln",
		Function:       "run_vuln",
		Binary:         "nuclei",
		DefaultTimeout: 600 * time.Second,
	},
}

// Lookup resolves a scanner type to its spec.
func Lookup(scannerType string) (Spec, bool) {
	s, ok := specs[scannerType]
	return s, ok
}

// Types returns the closed set of scanner type tags.
func Types() []string {
	return []string{models.ScannerPortFast, models.ScannerPortDeep, models.ScannerVuln}
}

// Runner executes one scan against a target and produces normalized results.
// Implementations wrap a single external scanner binary.
type Runner interface {
	Type() string
	Run(ctx context.Context, target string, options []byte) (*models.ScanResults, error)
}
