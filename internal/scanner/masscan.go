package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/models"
)

// Masscan drives the masscan binary for fast port discovery.
type Masscan struct {
	logger *logger.Logger
}

func NewMasscan(log *logger.Logger) *Masscan {
	return &Masscan{logger: log}
}

func (m *Masscan) Type() string {
	return models.ScannerPortFast
}

// wellKnownServices maps common ports to service names. Masscan does no
// service detection, so this is the best identification available.
var wellKnownServices = map[int]string{
	21:   "ftp",
	22:   "ssh",
	23:   "telnet",
	25:   "smtp",
	53:   "dns",
	80:   "http",
	110:  "pop3",
	143:  "imap",
	443:  "https",
	465:  "smtps",
	587:  "smtp",
	993:  "imaps",
	995:  "pop3s",
	3306: "mysql",
	3389: "rdp",
	5432: "postgresql",
	8080: "http-proxy",
	8443: "https-alt",
}

func identifyServiceByPort(port int) string {
	if name, ok := wellKnownServices[port]; ok {
		return name
	}
	return "unknown"
}

func (m *Masscan) Run(ctx context.Context, target string, options []byte) (*models.ScanResults, error) {
	var opts models.PortFastOptions
	if len(options) > 0 {
		if err := json.Unmarshal(options, &opts); err != nil {
			return nil, fmt.Errorf("invalid port-fast options: %w", err)
		}
	}

	ports := opts.Ports
	if ports == "" {
		ports = "1-10000"
	}
	rate := opts.Rate
	if rate <= 0 {
		rate = 1000
	}

	// Masscan takes IPs and CIDR blocks natively; only DNS names need
	// resolving first.
	ip, err := resolveIPv4(ctx, target)
	if err != nil {
		return nil, err
	}
	if ip != target {
		m.logger.Info("Resolved target", "target", target, "ip", ip)
	}

	args := []string{
		ip,
		"-p", ports,
		"--rate", strconv.Itoa(rate),
		"--output-format", "json",
		"--output-filename", "-",
	}

	output, err := runBinary(ctx, "masscan", args...)
	if err != nil {
		return nil, err
	}

	return m.parseOutput(output, ip), nil
}

// parseOutput reads masscan's JSON-lines output. Lines that fail to decode
// are skipped; if nothing decodes the raw output is preserved for debugging.
func (m *Masscan) parseOutput(output, target string) *models.ScanResults {
	results := &models.ScanResults{
		Scanner:   "masscan",
		Target:    target,
		OpenPorts: []int{},
		Services:  map[string]models.ServiceInfo{},
	}

	type masscanPort struct {
		Port   int    `json:"port"`
		Proto  string `json:"proto"`
		Status string `json:"status"`
	}
	type masscanLine struct {
		IP    string        `json:"ip"`
		Ports []masscanPort `json:"ports"`
	}

	lines := splitLines(output)
	decoded := 0
	for _, line := range lines {
		var entry masscanLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			m.logger.Debug("Skipping unparseable masscan line", "line", line)
			continue
		}
		decoded++
		if len(entry.Ports) == 0 {
			continue
		}

		port := entry.Ports[0]
		if port.Status != "open" {
			continue
		}

		results.OpenPorts = append(results.OpenPorts, port.Port)
		results.Services[strconv.Itoa(port.Port)] = models.ServiceInfo{
			Name:     identifyServiceByPort(port.Port),
			Protocol: port.Proto,
			State:    "open",
		}
	}

	if decoded == 0 && len(lines) > 0 {
		results.RawOutput = truncate(output, 5000)
		results.ParseError = "unrecognized masscan output"
	}

	return results
}

// resolveIPv4 returns the target unchanged when it already is an IP address
// or a CIDR block, otherwise resolves it to its first IPv4 address.
func resolveIPv4(ctx context.Context, target string) (string, error) {
	if net.ParseIP(target) != nil {
		return target, nil
	}
	if _, _, err := net.ParseCIDR(target); err == nil {
		return target, nil
	}

	addrs, err := net.DefaultResolver.LookupIP(ctx, "ip4", target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve hostname %s: %w", target, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no IPv4 address for hostname %s", target)
	}
	return addrs[0].String(), nil
}
