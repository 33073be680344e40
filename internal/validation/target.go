package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// domainPattern matches DNS names: labels of up to 63 alphanumeric/hyphen
// characters, not starting or ending with a hyphen, joined by dots.
var domainPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`)

// ipv4Pattern is used for asset type inference, not validation.
var ipv4Pattern = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

// ValidateTarget accepts IPv4/IPv6 addresses, CIDR blocks and DNS names.
func ValidateTarget(target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("target is empty")
	}

	if net.ParseIP(target) != nil {
		return nil
	}

	if _, _, err := net.ParseCIDR(target); err == nil {
		return nil
	}

	if domainPattern.MatchString(target) {
		return nil
	}

	return fmt.Errorf("invalid target format: must be IP, CIDR, or domain name")
}

// InferAssetType classifies a target as ip, domain or unknown.
func InferAssetType(target string) string {
	if ipv4Pattern.MatchString(target) {
		return "ip"
	}
	if strings.Contains(target, ".") && domainPattern.MatchString(target) {
		return "domain"
	}
	return "unknown"
}
