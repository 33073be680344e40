package risk

import (
	"math"
	"strings"

	"github.com/reconnity/easm/internal/models"
)

// Assessment is the outcome of scoring a set of findings for one target.
type Assessment struct {
	Score   int                `json:"score"`
	Level   string             `json:"level"`
	Factors map[string]float64 `json:"factors"`
}

// Subcomponent weights. Vulnerabilities dominate, exposure is a tiebreaker.
const (
	weightOpenPorts       = 0.30
	weightServices        = 0.25
	weightVulnerabilities = 0.35
	weightExposure        = 0.10
)

// highRiskPorts are ports whose mere exposure is a strong risk signal
// (legacy remote access, databases, SMB/RPC).
var highRiskPorts = map[int]bool{
	21: true, 23: true, 135: true, 139: true, 445: true,
	1433: true, 1521: true, 3389: true, 5432: true, 5984: true,
	6379: true, 9200: true, 27017: true,
}

var mediumRiskPorts = map[int]bool{
	22: true, 25: true, 53: true, 80: true, 110: true, 143: true,
	443: true, 993: true, 995: true, 3306: true, 5432: true,
}

var highRiskServices = []string{
	"ftp", "telnet", "rlogin", "rsh", "finger", "tftp",
	"mysql", "postgresql", "mongodb", "redis", "elasticsearch",
	"rdp", "vnc", "ssh", "smb",
}

// Calculate scores a set of findings into a bounded risk assessment.
// It is deterministic and side-effect-free; an empty finding set scores zero.
func Calculate(findings []models.Finding) Assessment {
	if len(findings) == 0 {
		return Assessment{Score: 0, Level: "none", Factors: map[string]float64{}}
	}

	portRisk := calculatePortRisk(findings)
	serviceRisk := calculateServiceRisk(findings)
	vulnRisk := calculateVulnerabilityRisk(findings)
	exposureRisk := calculateExposureRisk(findings)

	total := portRisk*weightOpenPorts +
		serviceRisk*weightServices +
		vulnRisk*weightVulnerabilities +
		exposureRisk*weightExposure

	score := int(math.Round(total))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return Assessment{
		Score: score,
		Level: Level(score),
		Factors: map[string]float64{
			"open_ports":      portRisk,
			"services":        serviceRisk,
			"vulnerabilities": vulnRisk,
			"exposure":        exposureRisk,
		},
	}
}

func calculatePortRisk(findings []models.Finding) float64 {
	var score float64
	for _, f := range findings {
		if f.FindingType != models.FindingTypeOpenPort || f.Port == nil {
			continue
		}
		switch {
		case highRiskPorts[*f.Port]:
			score += 30
		case mediumRiskPorts[*f.Port]:
			score += 15
		default:
			score += 5
		}
	}
	return math.Min(100, score)
}

func calculateServiceRisk(findings []models.Finding) float64 {
	var score float64
	for _, f := range findings {
		if f.FindingType != models.FindingTypeService || f.Service == nil {
			continue
		}
		service := strings.ToLower(*f.Service)
		risky := false
		for _, hrs := range highRiskServices {
			if strings.Contains(service, hrs) {
				risky = true
				break
			}
		}
		if risky {
			score += 20
		} else {
			score += 5
		}
	}
	return math.Min(100, score)
}

func calculateVulnerabilityRisk(findings []models.Finding) float64 {
	var score float64
	for _, f := range findings {
		if f.FindingType != models.FindingTypeVulnerability {
			continue
		}
		switch strings.ToLower(f.Severity) {
		case models.SeverityCritical:
			score += 40
		case models.SeverityHigh:
			score += 25
		case models.SeverityMedium:
			score += 15
		case models.SeverityLow:
			score += 5
		}
	}
	return math.Min(100, score)
}

func calculateExposureRisk(findings []models.Finding) float64 {
	openPorts := 0
	for _, f := range findings {
		if f.FindingType == models.FindingTypeOpenPort {
			openPorts++
		}
	}

	switch {
	case openPorts == 0:
		return 0
	case openPorts <= 3:
		return 20
	case openPorts <= 10:
		return 50
	default:
		return 80
	}
}

// Level converts a numeric score to a risk level bucket.
func Level(score int) string {
	switch {
	case score >= 80:
		return "critical"
	case score >= 60:
		return "high"
	case score >= 40:
		return "medium"
	case score >= 20:
		return "low"
	default:
		return "info"
	}
}
