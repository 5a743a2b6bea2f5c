package geolite

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"proxywarden/internal/domain"
)

const unknownCountry = "N/A"

// CountryLookup resolves proxy hosts to country names using a GeoLite2
// Country database. A nil *CountryLookup is valid and resolves nothing.
type CountryLookup struct {
	mu        sync.RWMutex
	countryDB *geoip2.Reader
}

// OpenCountryLookup loads the GeoLite2 Country database at path.
func OpenCountryLookup(path string) (*CountryLookup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("geolite: read %s: %w", path, err)
	}

	reader, err := geoip2.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("geolite: parse %s: %w", path, err)
	}

	return &CountryLookup{countryDB: reader}, nil
}

// Country returns the English country name for a proxy address or bare IP,
// falling back to the ISO code and then to "N/A".
func (l *CountryLookup) Country(address string) string {
	if l == nil {
		return unknownCountry
	}

	ip := net.ParseIP(hostOf(address))
	if ip == nil {
		return unknownCountry
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.countryDB == nil {
		return unknownCountry
	}

	record, err := l.countryDB.Country(ip)
	if err != nil {
		return unknownCountry
	}

	if name := record.Country.Names["en"]; name != "" {
		return name
	}

	if record.Country.IsoCode != "" {
		return strings.ToUpper(record.Country.IsoCode)
	}

	return unknownCountry
}

// Enrich sets the country column of a validation record.
func (l *CountryLookup) Enrich(rec *domain.ValidationRecord) {
	if l == nil || rec == nil || rec.Country != "" {
		return
	}
	rec.Country = l.Country(rec.Proxy)
}

func (l *CountryLookup) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.countryDB == nil {
		return nil
	}
	err := l.countryDB.Close()
	l.countryDB = nil
	return err
}

func hostOf(address string) string {
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return address
}
