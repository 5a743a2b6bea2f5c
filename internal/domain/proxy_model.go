package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProxyType identifies the tunnel protocol a proxy speaks. Every type owns an
// independent alive pool, validation stream and persisted file.
type ProxyType string

const (
	ProxyTypeHTTP   ProxyType = "http"
	ProxyTypeSOCKS5 ProxyType = "socks5"
)

// ProxyTypes returns the fixed processing order of a run.
func ProxyTypes() []ProxyType {
	return []ProxyType{ProxyTypeHTTP, ProxyTypeSOCKS5}
}

func ParseProxyType(raw string) (ProxyType, error) {
	switch ProxyType(strings.ToLower(strings.TrimSpace(raw))) {
	case ProxyTypeHTTP:
		return ProxyTypeHTTP, nil
	case ProxyTypeSOCKS5:
		return ProxyTypeSOCKS5, nil
	default:
		return "", fmt.Errorf("domain: unsupported proxy type %q", raw)
	}
}

func (t ProxyType) String() string {
	return string(t)
}

// Upper is used for headers and log banners.
func (t ProxyType) Upper() string {
	return strings.ToUpper(string(t))
}

// FileName is the persisted pool file of the type inside the data directory.
func (t ProxyType) FileName() string {
	return string(t) + ".txt"
}

// DeadEntry is a ledger row: a proxy confirmed non-functional and the moment
// it was last marked dead.
type DeadEntry struct {
	Proxy    string
	MarkedAt time.Time
}
