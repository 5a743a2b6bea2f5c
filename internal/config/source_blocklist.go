package config

import (
	"net/url"
	"strings"
)

// SourceBlocklist holds normalized hostnames whose proxy lists must never be
// fetched. Subdomains of a blocked host are blocked too.
type SourceBlocklist map[string]struct{}

func NewSourceBlocklist(entries []string) SourceBlocklist {
	set := make(SourceBlocklist, len(entries))
	for _, host := range NormalizeHosts(entries) {
		set[host] = struct{}{}
	}
	return set
}

// NormalizeHosts trims, lowercases, and deduplicates host entries.
func NormalizeHosts(entries []string) []string {
	unique := make(map[string]struct{}, len(entries))
	normalized := make([]string, 0, len(entries))

	for _, raw := range entries {
		host := normalizeHostname(raw)
		if host == "" {
			continue
		}
		if _, exists := unique[host]; exists {
			continue
		}
		unique[host] = struct{}{}
		normalized = append(normalized, host)
	}

	return normalized
}

func (b SourceBlocklist) Blocked(rawURL string) bool {
	if len(b) == 0 {
		return false
	}

	host := normalizeHostname(rawURL)
	if host == "" {
		return false
	}

	if _, ok := b[host]; ok {
		return true
	}
	for blocked := range b {
		if strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

func normalizeHostname(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	// Allow bare hostnames by prefixing a scheme for URL parsing.
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	return strings.Trim(host, ".")
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
