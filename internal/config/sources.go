package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"proxywarden/internal/domain"
)

// LoadSources reads the sources CSV (header "type,link"). Rows with an
// unknown type, an invalid link or a blocked host are skipped.
func LoadSources(path string, blocked SourceBlocklist) ([]domain.Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open sources: %w", err)
	}
	defer file.Close()

	return ParseSources(file, blocked)
}

func ParseSources(r io.Reader, blocked SourceBlocklist) ([]domain.Source, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read sources header: %w", err)
	}

	typeCol, linkCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "type":
			typeCol = i
		case "link":
			linkCol = i
		}
	}
	if typeCol < 0 || linkCol < 0 {
		return nil, fmt.Errorf("config: sources header must contain type and link columns, got %v", header)
	}

	var (
		sources []domain.Source
		seen    = make(map[domain.Source]struct{})
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn("Skipping malformed sources row", "error", err)
			continue
		}
		if typeCol >= len(row) || linkCol >= len(row) {
			continue
		}

		proxyType, err := domain.ParseProxyType(row[typeCol])
		if err != nil {
			log.Debug("Skipping source with unsupported type", "type", row[typeCol])
			continue
		}

		link := strings.TrimSpace(row[linkCol])
		if !isHTTPURL(link) {
			log.Warn("Skipping source with invalid link", "link", link)
			continue
		}
		if blocked.Blocked(link) {
			log.Info("Source host is blocked; skipping", "link", link)
			continue
		}

		source := domain.Source{Type: proxyType, URL: link}
		if _, dup := seen[source]; dup {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}

	return sources, nil
}

// SourcesByType groups sources while keeping file order inside each type.
func SourcesByType(sources []domain.Source) map[domain.ProxyType][]domain.Source {
	grouped := make(map[domain.ProxyType][]domain.Source)
	for _, source := range sources {
		grouped[source.Type] = append(grouped[source.Type], source)
	}
	return grouped
}
