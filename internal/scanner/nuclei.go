package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/models"
)

const defaultTemplatesDir = "/root/.config/nuclei/templates"

// Nuclei drives the nuclei binary for template-based vulnerability scanning.
type Nuclei struct {
	logger       *logger.Logger
	templatesDir string
}

func NewNuclei(log *logger.Logger) *Nuclei {
	return &Nuclei{logger: log, templatesDir: defaultTemplatesDir}
}

func (n *Nuclei) Type() string {
	return models.ScannerVuln
}

func (n *Nuclei) Run(ctx context.Context, target string, options []byte) (*models.ScanResults, error) {
	var opts models.VulnOptions
	if len(options) > 0 {
		if err := json.Unmarshal(options, &opts); err != nil {
			return nil, fmt.Errorf("invalid vuln options: %w", err)
		}
	}

	severity := opts.Severity
	if len(severity) == 0 {
		severity = []string{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium}
	}
	templates := opts.Templates
	if len(templates) == 0 {
		templates = []string{"cves"}
	}
	rate := opts.Rate
	if rate <= 0 {
		rate = 150
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 25
	}

	templatePaths := make([]string, 0, len(templates))
	for _, t := range templates {
		templatePaths = append(templatePaths, n.templatesDir+"/"+t)
	}

	args := []string{
		"-target", target,
		"-jsonl", "-silent",
		"-rate-limit", strconv.Itoa(rate),
		"-severity", strings.Join(severity, ","),
		"-t", strings.Join(templatePaths, ","),
		"-c", strconv.Itoa(concurrency),
	}

	output, err := runBinary(ctx, "nuclei", args...)
	if err != nil {
		return nil, err
	}

	return n.parseOutput(output, target), nil
}

// parseOutput reads nuclei's JSON-lines output. Statistics records update
// the stats block; everything else becomes a vulnerability entry. Lines
// that fail to decode are counted but skipped.
func (n *Nuclei) parseOutput(output, target string) *models.ScanResults {
	results := &models.ScanResults{
		Scanner:         "nuclei",
		Target:          target,
		OpenPorts:       []int{},
		Services:        map[string]models.ServiceInfo{},
		Vulnerabilities: []models.VulnerabilityItem{},
		RawOutput:       truncate(output, 5000),
		Stats: map[string]interface{}{
			"templates_executed": 0,
			"hosts_found":        0,
			"total_findings":     0,
		},
	}

	if strings.TrimSpace(output) == "" {
		n.logger.Info("Empty nuclei output", "target", target)
		return results
	}

	type nucleiInfo struct {
		Name        string   `json:"name"`
		Severity    string   `json:"severity"`
		Description string   `json:"description"`
		Reference   []string `json:"reference"`
		Tags        []string `json:"tags"`
	}
	type nucleiLine struct {
		TemplateID string                 `json:"template-id"`
		Info       *nucleiInfo            `json:"info"`
		Host       string                 `json:"host"`
		MatchedAt  string                 `json:"matched-at"`
		Type       string                 `json:"type"`
		Stats      map[string]interface{} `json:"stats"`
	}

	processed := 0
	errorCount := 0
	for _, line := range splitLines(output) {
		var entry nucleiLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			errorCount++
			n.logger.Debug("Skipping unparseable nuclei line", "line", truncate(line, 100))
			continue
		}
		processed++

		// A statistics record, not a finding.
		if entry.Stats != nil {
			if templates, ok := entry.Stats["templates"].(map[string]interface{}); ok {
				if total, ok := templates["total"]; ok {
					results.Stats["templates_executed"] = total
				}
			}
			continue
		}

		vuln := models.VulnerabilityItem{
			ID:       entry.TemplateID,
			Name:     "Unknown",
			Severity: "unknown",
			URL:      entry.MatchedAt,
		}
		if entry.Info != nil {
			if entry.Info.Name != "" {
				vuln.Name = entry.Info.Name
			}
			if entry.Info.Severity != "" {
				vuln.Severity = entry.Info.Severity
			}
			vuln.Description = entry.Info.Description
		}

		details := map[string]interface{}{}
		if entry.Host != "" {
			details["host"] = entry.Host
		}
		if entry.Type != "" {
			details["type"] = entry.Type
		}
		if entry.Info != nil && len(entry.Info.Tags) > 0 {
			details["tags"] = entry.Info.Tags
		}
		if entry.Info != nil && len(entry.Info.Reference) > 0 {
			details["references"] = entry.Info.Reference
		}
		if len(details) > 0 {
			vuln.Details = details
		}

		results.Vulnerabilities = append(results.Vulnerabilities, vuln)
	}

	results.Stats["hosts_found"] = 1
	results.Stats["total_findings"] = len(results.Vulnerabilities)
	results.Stats["processed_lines"] = processed
	results.Stats["error_count"] = errorCount

	if processed == 0 {
		results.ParseError = "unrecognized nuclei output"
	}

	return results
}
