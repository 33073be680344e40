package scanner

import (
	"testing"

	"github.com/reconnity/easm/internal/logger"
)

func TestNucleiParseOutput(t *testing.T) {
	n := NewNuclei(logger.NewLogger("test"))

	output := `{"template-id":"CVE-2021-44228","info":{"name":"Apache Log4j RCE","severity":"critical","description":"JNDI injection","tags":["cve","rce"],"reference":["https://nvd.nist.gov/vuln/detail/CVE-2021-44228"]},"host":"example.com","matched-at":"https://example.com:8080","type":"http"}
{"template-id":"ssl-issuer","info":{"name":"SSL Certificate Issuer","severity":"info"},"host":"example.com","matched-at":"example.com:443","type":"ssl"}
{"stats":{"templates":{"total":312}}}`

	results := n.parseOutput(output, "example.com")

	if results.Scanner != "nuclei" {
		t.Errorf("Expected scanner nuclei, got %s", results.Scanner)
	}
	if len(results.Vulnerabilities) != 2 {
		t.Fatalf("Expected 2 vulnerabilities, got %d", len(results.Vulnerabilities))
	}

	rce := results.Vulnerabilities[0]
	if rce.ID != "CVE-2021-44228" || rce.Name != "Apache Log4j RCE" || rce.Severity != "critical" {
		t.Errorf("Unexpected vulnerability: %+v", rce)
	}
	if rce.URL != "https://example.com:8080" {
		t.Errorf("Expected matched-at as URL, got %s", rce.URL)
	}
	if rce.Details["type"] != "http" {
		t.Errorf("Expected http type detail, got %v", rce.Details)
	}

	if got := results.Stats["templates_executed"]; got != float64(312) {
		t.Errorf("Expected 312 templates executed, got %v", got)
	}
	if got := results.Stats["total_findings"]; got != 2 {
		t.Errorf("Expected 2 total findings, got %v", got)
	}
}

func TestNucleiParseOutput_Empty(t *testing.T) {
	n := NewNuclei(logger.NewLogger("test"))

	results := n.parseOutput("", "example.com")

	if len(results.Vulnerabilities) != 0 {
		t.Errorf("Expected no vulnerabilities, got %d", len(results.Vulnerabilities))
	}
	if results.ParseError != "" {
		t.Errorf("Empty output is not a parse error, got %q", results.ParseError)
	}
	if got := results.Stats["total_findings"]; got != 0 {
		t.Errorf("Expected 0 findings in stats, got %v", got)
	}
}

func TestNucleiParseOutput_Garbage(t *testing.T) {
	n := NewNuclei(logger.NewLogger("test"))

	results := n.parseOutput("WARN could not load templates\nFTL fatal error", "example.com")

	if results.ParseError == "" {
		t.Error("Expected a parse error for non-JSON output")
	}
	if results.RawOutput == "" {
		t.Error("Expected raw output to be preserved")
	}
}

func TestNucleiParseOutput_MissingInfoBlock(t *testing.T) {
	n := NewNuclei(logger.NewLogger("test"))

	results := n.parseOutput(`{"template-id":"odd-template","host":"example.com"}`, "example.com")

	if len(results.Vulnerabilities) != 1 {
		t.Fatalf("Expected 1 vulnerability, got %d", len(results.Vulnerabilities))
	}
	v := results.Vulnerabilities[0]
	if v.Name != "Unknown" || v.Severity != "unknown" {
		t.Errorf("Expected placeholder fields, got %+v", v)
	}
}
