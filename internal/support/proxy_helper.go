package support

import (
	"sort"
	"strings"
)

var schemePrefixes = []string{"http://", "https://", "socks5://", "socks4://"}

// NormalizeProxyLine turns one raw list line into an "IP:PORT" address.
// Known scheme prefixes are stripped; anything that is not exactly a dotted
// quad of numeric components followed by a numeric port is rejected.
func NormalizeProxyLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}

	for _, prefix := range schemePrefixes {
		if strings.HasPrefix(line, prefix) {
			line = line[len(prefix):]
			break
		}
	}

	host, port, ok := strings.Cut(line, ":")
	if !ok || strings.Contains(port, ":") {
		return "", false
	}
	if !isDottedQuad(host) || !isDigits(port) {
		return "", false
	}

	return line, true
}

// ParseTextToProxies normalizes every line of text and returns the distinct
// accepted addresses.
func ParseTextToProxies(text string) map[string]struct{} {
	text = strings.ReplaceAll(text, "\r", "")

	proxies := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		if proxy, ok := NormalizeProxyLine(line); ok {
			proxies[proxy] = struct{}{}
		}
	}
	return proxies
}

// IsProxyAddress reports whether s is already a normalized address.
func IsProxyAddress(s string) bool {
	normalized, ok := NormalizeProxyLine(s)
	return ok && normalized == s
}

// SortedProxies returns the members of set in lexical order.
func SortedProxies(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for proxy := range set {
		out = append(out, proxy)
	}
	sort.Strings(out)
	return out
}

func isDottedQuad(host string) bool {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if len(part) > 3 || !isDigits(part) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
