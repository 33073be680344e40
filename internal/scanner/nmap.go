package scanner

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/models"
)

// Nmap drives the nmap binary for deep port and service enumeration.
type Nmap struct {
	logger *logger.Logger
}

func NewNmap(log *logger.Logger) *Nmap {
	return &Nmap{logger: log}
}

func (n *Nmap) Type() string {
	return models.ScannerPortDeep
}

func (n *Nmap) Run(ctx context.Context, target string, options []byte) (*models.ScanResults, error) {
	var opts models.PortDeepOptions
	if len(options) > 0 {
		if err := json.Unmarshal(options, &opts); err != nil {
			return nil, fmt.Errorf("invalid port-deep options: %w", err)
		}
	}

	ports := opts.Ports
	if ports == "" {
		ports = "1-1000"
	}
	timing := 4
	if opts.Timing != nil {
		timing = *opts.Timing
	}
	serviceDetection := true
	if opts.ServiceDetection != nil {
		serviceDetection = *opts.ServiceDetection
	}

	args := []string{"-sS"}
	if opts.OSDetection {
		args = append(args, "-O")
	}
	if serviceDetection {
		args = append(args, "-sV")
	}
	if opts.ScriptScan {
		args = append(args, "-sC")
	}
	args = append(args,
		"--open",
		"-oX", "-",
		"-p", ports,
		"-T"+strconv.Itoa(timing),
		target,
	)

	output, err := runBinary(ctx, "nmap", args...)
	if err != nil {
		return nil, err
	}

	return n.parseOutput(output, target), nil
}

type nmapRun struct {
	Hosts []nmapHost `xml:"host"`
}

type nmapHost struct {
	Status    nmapStatus    `xml:"status"`
	Ports     []nmapPort    `xml:"ports>port"`
	OSMatches []nmapOSMatch `xml:"os>osmatch"`
}

type nmapStatus struct {
	State string `xml:"state,attr"`
}

type nmapPort struct {
	Protocol string      `xml:"protocol,attr"`
	PortID   int         `xml:"portid,attr"`
	State    nmapStatus  `xml:"state"`
	Service  nmapService `xml:"service"`
}

type nmapService struct {
	Name    string `xml:"name,attr"`
	Product string `xml:"product,attr"`
	Version string `xml:"version,attr"`
}

type nmapOSMatch struct {
	Name     string `xml:"name,attr"`
	Accuracy int    `xml:"accuracy,attr"`
}

// parseOutput reads nmap's XML report. A malformed document degrades to a
// completed result carrying the raw output and a parse error.
func (n *Nmap) parseOutput(output, target string) *models.ScanResults {
	results := &models.ScanResults{
		Scanner:   "nmap",
		Target:    target,
		OpenPorts: []int{},
		Services:  map[string]models.ServiceInfo{},
	}

	var run nmapRun
	if err := xml.Unmarshal([]byte(output), &run); err != nil {
		n.logger.Error("Failed to parse nmap XML", err)
		results.RawOutput = truncate(output, 5000)
		results.ParseError = err.Error()
		return results
	}

	for _, host := range run.Hosts {
		if host.Status.State != "up" {
			continue
		}

		for _, port := range host.Ports {
			if port.State.State != "open" {
				continue
			}
			results.OpenPorts = append(results.OpenPorts, port.PortID)

			name := port.Service.Name
			if name == "" {
				name = "unknown"
			}
			results.Services[strconv.Itoa(port.PortID)] = models.ServiceInfo{
				Name:     name,
				Product:  port.Service.Product,
				Version:  port.Service.Version,
				Protocol: port.Protocol,
				State:    "open",
			}
		}

		if results.OSInfo == nil {
			for _, match := range host.OSMatches {
				if match.Accuracy >= 80 {
					results.OSInfo = &models.OSInfo{
						Name:     match.Name,
						Accuracy: strconv.Itoa(match.Accuracy),
					}
					break
				}
			}
		}
	}

	return results
}
